// Package tui renders the interaction controller in the terminal with Bubble
// Tea. It subscribes to controller snapshots and forwards key presses as
// controller operations; it holds no workflow state of its own beyond the
// image picker.
package tui
