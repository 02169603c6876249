package tui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"cloudpose/internal/controller"
	"cloudpose/internal/imagefile"
	"cloudpose/internal/logging"
)

type stateMsg controller.State

type selectedMsg struct {
	meta imagefile.Metadata
	err  error
}

type requestDoneMsg struct {
	err error
}

type model struct {
	ctx    context.Context
	ctrl   *controller.Controller
	states <-chan controller.State
	logger *slog.Logger

	state    controller.State
	keys     keyMap
	help     help.Model
	spinner  spinner.Model
	picker   *picker
	picking  bool
	meta     *imagefile.Metadata
	notice   string
	width    int
	height   int
	quitting bool
}

func newModel(ctx context.Context, ctrl *controller.Controller, states <-chan controller.State, imageDir string, logger *slog.Logger) model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = busyStyle
	return model{
		ctx:     ctx,
		ctrl:    ctrl,
		states:  states,
		logger:  logging.NewComponentLogger(logger, "tui"),
		state:   ctrl.Snapshot(),
		keys:    defaultKeyMap(),
		help:    help.New(),
		spinner: sp,
		picker:  newPicker(imageDir),
		width:   80,
		height:  24,
	}
}

func waitForState(states <-chan controller.State) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-states
		if !ok {
			return nil
		}
		return stateMsg(s)
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(waitForState(m.states), loadImagesCmd(m.picker.dir), m.spinner.Tick)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		return m, nil
	case stateMsg:
		m.state = controller.State(msg)
		return m, waitForState(m.states)
	case imagesLoadedMsg:
		if msg.err != nil {
			m.notice = msg.err.Error()
			return m, nil
		}
		m.picker.SetEntries(msg.entries)
		return m, nil
	case selectedMsg:
		if msg.err != nil {
			m.notice = msg.err.Error()
			m.meta = nil
			return m, nil
		}
		meta := msg.meta
		m.meta = &meta
		m.notice = ""
		return m, nil
	case requestDoneMsg:
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		if m.picking {
			return m.updatePicker(msg)
		}
		return m.updateMain(msg)
	}
	return m, nil
}

func (m model) updatePicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.quitting = true
		return m, tea.Quit
	}
	switch m.picker.HandleKey(msg.String()) {
	case pickerActionSelected:
		entry, _ := m.picker.Current()
		m.picking = false
		m.meta = nil
		return m, m.selectCmd(entry.path)
	case pickerActionCancelled:
		m.picking = false
	}
	return m, nil
}

func (m model) updateMain(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.Open):
		m.picking = true
		return m, nil
	case key.Matches(msg, m.keys.Pose):
		if m.state.Loading {
			return m, nil
		}
		return m, m.requestCmd(m.ctrl.RequestPoseKeypoints)
	case key.Matches(msg, m.keys.Annotate):
		if m.state.Loading {
			return m, nil
		}
		return m, m.requestCmd(m.ctrl.RequestAnnotatedImage)
	case key.Matches(msg, m.keys.ViewPose):
		m.setView(controller.ViewPose)
	case key.Matches(msg, m.keys.ViewAnnotated):
		m.setView(controller.ViewAnnotated)
	case key.Matches(msg, m.keys.Toggle):
		if m.state.View == controller.ViewPose {
			m.setView(controller.ViewAnnotated)
		} else {
			m.setView(controller.ViewPose)
		}
	}
	return m, nil
}

func (m *model) setView(mode controller.ViewMode) {
	if err := m.ctrl.SetViewMode(mode); err != nil {
		m.notice = err.Error()
		return
	}
	// Reflect the switch immediately; the subscription delivers the same state.
	m.state.View = mode
}

func (m model) selectCmd(path string) tea.Cmd {
	ctx, ctrl, logger := m.ctx, m.ctrl, m.logger
	return func() tea.Msg {
		img, err := imagefile.Open(path)
		if err != nil {
			logger.Warn("open image failed", logging.String("path", path), logging.Error(err))
			return selectedMsg{err: err}
		}
		ctrl.SelectImage(ctx, img)
		meta, err := imagefile.Describe(ctx, img)
		if err != nil {
			logger.Debug("image header not decoded", logging.String("path", path), logging.Error(err))
			return selectedMsg{meta: imagefile.Metadata{}}
		}
		return selectedMsg{meta: meta}
	}
}

func (m model) requestCmd(request func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return requestDoneMsg{err: request(ctx)}
	}
}

func (m model) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("CloudPose") + mutedStyle.Render("  pose estimation client") + "\n\n")

	if m.picking {
		b.WriteString(panelStyle.Render(m.picker.View(m.width-4, m.height-8)))
		b.WriteString("\n" + mutedStyle.Render("↑/↓ move  enter select  esc cancel"))
		return b.String()
	}

	b.WriteString(m.renderSelection() + "\n")
	b.WriteString(m.renderStatus() + "\n\n")
	b.WriteString(m.renderTabs() + "\n")
	b.WriteString(panelStyle.Render(m.renderResult()) + "\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m model) renderSelection() string {
	img := m.state.Image
	if img == nil {
		return labelStyle.Render("Image: ") + mutedStyle.Render("none selected (press o)")
	}
	line := labelStyle.Render("Image: ") + textStyle.Render(img.Name) + mutedStyle.Render(" "+img.MIMEType)
	if m.meta != nil && m.meta.Width > 0 {
		line += mutedStyle.Render(fmt.Sprintf(" %dx%d %s", m.meta.Width, m.meta.Height, m.meta.Format))
	}
	if m.state.Preview == "" {
		line += mutedStyle.Render("  preview pending")
	} else {
		line += okStyle.Render("  preview ready")
	}
	return truncateLine(line, m.width)
}

func (m model) renderStatus() string {
	switch {
	case m.state.Loading:
		return m.spinner.View() + busyStyle.Render(" Processing...")
	case m.state.Error != "":
		return errorStyle.Render(m.state.Error)
	case m.notice != "":
		return errorStyle.Render(m.notice)
	default:
		return mutedStyle.Render("ready")
	}
}

func (m model) renderTabs() string {
	pose, annotated := inactiveTabStyle, inactiveTabStyle
	if m.state.View == controller.ViewAnnotated {
		annotated = activeTabStyle
	} else {
		pose = activeTabStyle
	}
	return pose.Render("Pose Keypoints") + " " + annotated.Render("Annotated Image")
}

func (m model) renderResult() string {
	maxLines := m.height - 12
	if maxLines < 5 {
		maxLines = 5
	}
	if m.state.View == controller.ViewAnnotated {
		if m.state.Annotated == "" {
			return mutedStyle.Render("No annotated image yet")
		}
		data, err := imagefile.DecodeDataURL(m.state.Annotated)
		if err != nil {
			return errorStyle.Render("annotated image is not valid base64")
		}
		line := fmt.Sprintf("Annotated JPEG received (%d bytes)", len(data))
		if meta, err := imagefile.DescribeBytes(data); err == nil {
			line += fmt.Sprintf(", %dx%d", meta.Width, meta.Height)
		}
		return textStyle.Render(line) + "\n" + mutedStyle.Render("use `cloudpose annotate --out` to save it")
	}

	if m.state.Pose == nil {
		return mutedStyle.Render("No keypoints yet")
	}
	lines := strings.Split(m.state.Pose.Pretty(), "\n")
	if len(lines) > maxLines {
		lines = append(lines[:maxLines], mutedStyle.Render(fmt.Sprintf("... %d more lines", len(lines)-maxLines)))
	}
	for i := range lines {
		lines[i] = truncateLine(lines[i], m.width-4)
	}
	return strings.Join(lines, "\n")
}
