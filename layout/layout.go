package layout

import (
	"fmt"
	"strings"
	"sync"

	"github.com/jroimartin/gocui"
	log "github.com/sirupsen/logrus"

	"coinsim/commands"
)

type cmd struct {
	str   string
	ready bool
	m     sync.RWMutex
}

var command cmd = cmd{}

// PastCmd is the view that echoes past commands.
type PastCmd struct {
	name string
}

// Input box for commands.
type Input struct {
	name string
	cmd  chan commands.Command
}

// Logger shows the simulator's output.
type Logger struct {
	name string
}

// Manual renders the usage text.
type Manual struct {
	name string
	text string
}

func (pc *PastCmd) Layout(g *gocui.Gui) error {
	maxX, maxY := g.Size()
	// Bottom left corner.
	v, _ := g.SetView(pc.name, 1, maxY*2/3, maxX/3, maxY-6)
	v.Autoscroll = true
	v.Wrap = true

	command.m.RLock()
	defer command.m.RUnlock()
	if command.ready {
		fmt.Fprintln(v, "> "+command.str)
	}
	command.ready = false

	return nil
}

func (i *Input) Layout(g *gocui.Gui) error {
	maxX, maxY := g.Size()
	// Bottom row, full width.
	v, err := g.SetView(i.name, 1, maxY-5, maxX-1, maxY-1)
	if err != nil && err != gocui.ErrUnknownView {
		return err
	}
	v.Wrap = true
	v.Autoscroll = true
	v.Editor = i
	v.Editable = true
	return nil
}

func (l *Logger) Layout(g *gocui.Gui) error {
	maxX, maxY := g.Size()
	// Right pane.
	v, _ := g.SetView(l.name, maxX/3+1, 1, maxX-1, maxY-6)
	v.Autoscroll = true
	v.Wrap = true
	return nil
}

func (m *Manual) Layout(g *gocui.Gui) error {
	maxX, maxY := g.Size()
	// Top left pane.
	v, _ := g.SetView(m.name, 1, 1, maxX/3, maxY*2/3-1)
	v.Autoscroll = true
	v.Wrap = true
	v.Clear()
	fmt.Fprintln(v, m.text)
	return nil
}

func (i *Input) Edit(v *gocui.View, key gocui.Key, ch rune, mod gocui.Modifier) {
	switch {
	case key == gocui.KeyEnter:
		// Read buffer and strip the newline.
		s := strings.Replace(v.Buffer(), "\n", "", -1)
		op, err := commands.CreateCommand(s)
		command.m.Lock()
		command.str = s
		if err != nil {
			command.str = s + "\n" + err.Error()
		}
		command.ready = true
		command.m.Unlock()
		if err == nil {
			// If a valid command, hand it to the node loop.
			i.cmd <- op
		}

		// Reset cursor.
		v.Clear()
		v.SetOrigin(0, 0)
		v.SetCursor(0, 0)

	case ch != 0 && mod == 0:
		v.EditWrite(ch)
	case key == gocui.KeySpace:
		v.EditWrite(' ')
	case key == gocui.KeyBackspace || key == gocui.KeyBackspace2:
		v.EditDelete(true)
	}
}

func SetFocus(name string) func(g *gocui.Gui) error {
	return func(g *gocui.Gui) error {
		_, err := g.SetCurrentView(name)
		return err
	}
}

// CreateGui builds the four-pane terminal UI, passing parsed commands to cmd.
// manual is the usage text shown in the top left pane.
func CreateGui(cmd chan commands.Command, manual string) (*gocui.Gui, error) {
	g, err := gocui.NewGui(gocui.OutputNormal)
	if err != nil {
		return nil, err
	}

	g.Cursor = true

	pc := &PastCmd{name: "pastcommand"}
	l := &Logger{name: "logger"}
	m := &Manual{name: "manual", text: manual}
	input := &Input{name: "input", cmd: cmd}
	focus := gocui.ManagerFunc(SetFocus("input"))
	g.SetManager(pc, input, l, m, focus)

	if err := g.SetKeybinding("", gocui.KeyCtrlC, gocui.ModNone, quit); err != nil {
		log.Panicln(err)
	}

	return g, err
}

// Print writes a line to the logger view, or stdout when no GUI is active.
func Print(g *gocui.Gui, msg string) {
	if g == nil {
		fmt.Println(msg)
		return
	}
	g.Update(func(g *gocui.Gui) error {
		v, err := g.View("logger")
		if err != nil {
			return err
		}
		fmt.Fprintln(v, msg)
		return nil
	})
}

func quit(g *gocui.Gui, v *gocui.View) error {
	return gocui.ErrQuit
}
