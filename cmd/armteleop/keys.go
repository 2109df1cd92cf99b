package main

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Select    key.Binding
	Up        key.Binding
	Down      key.Binding
	Finer     key.Binding
	Coarser   key.Binding
	View      key.Binding
	Frame     key.Binding
	Apply     key.Binding
	Reset     key.Binding
	Stop      key.Binding
	Play      key.Binding
	Pause     key.Binding
	SpeedUp   key.Binding
	SpeedDown key.Binding
	Quit      key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Select:    key.NewBinding(key.WithKeys("1", "2", "3", "4", "5", "6"), key.WithHelp("1-6", "select")),
		Up:        key.NewBinding(key.WithKeys("up", "k", "+"), key.WithHelp("↑", "jog +")),
		Down:      key.NewBinding(key.WithKeys("down", "j", "-"), key.WithHelp("↓", "jog -")),
		Finer:     key.NewBinding(key.WithKeys("["), key.WithHelp("[", "finer")),
		Coarser:   key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "coarser")),
		View:      key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "joint/tcp")),
		Frame:     key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "base/tool")),
		Apply:     key.NewBinding(key.WithKeys("enter", "a"), key.WithHelp("enter", "apply")),
		Reset:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reset")),
		Stop:      key.NewBinding(key.WithKeys(" ", "x"), key.WithHelp("space", "STOP")),
		Play:      key.NewBinding(key.WithKeys("p"), key.WithHelp("p/o", "program play/stop")),
		Pause:     key.NewBinding(key.WithKeys("o")),
		SpeedUp:   key.NewBinding(key.WithKeys("s"), key.WithHelp("s/S", "speed")),
		SpeedDown: key.NewBinding(key.WithKeys("S")),
		Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// help lists the bindings shown in the footer.
func (k keyMap) help() []key.Binding {
	return []key.Binding{k.Select, k.Up, k.Down, k.Finer, k.Coarser, k.View, k.Frame, k.Apply, k.Reset, k.Stop, k.Play, k.SpeedUp, k.Quit}
}
