package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Open          key.Binding
	Pose          key.Binding
	Annotate      key.Binding
	ViewPose      key.Binding
	ViewAnnotated key.Binding
	Toggle        key.Binding
	Quit          key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Open:          key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "open image")),
		Pose:          key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "keypoints")),
		Annotate:      key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "annotated")),
		ViewPose:      key.NewBinding(key.WithKeys("1"), key.WithHelp("1", "pose tab")),
		ViewAnnotated: key.NewBinding(key.WithKeys("2"), key.WithHelp("2", "image tab")),
		Toggle:        key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "switch tab")),
		Quit:          key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Open, k.Pose, k.Annotate, k.Toggle, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Open, k.Pose, k.Annotate}, {k.ViewPose, k.ViewAnnotated, k.Toggle, k.Quit}}
}
