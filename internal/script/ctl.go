package script

import (
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/chromad/internal/actions"
)

// CtlModule exposes the current dispatch to Lua. Every call is performed as a
// nested action so it is subject to the same capability checks and logging.
// A failed call raises a Lua error; wrap it in pcall to continue.
type CtlModule struct {
	actx *actions.Context
}

// NewCtlModule creates a ctl module bound to one dispatch.
func NewCtlModule(actx *actions.Context) *CtlModule {
	return &CtlModule{actx: actx}
}

// Loader is the module loader for Lua
func (m *CtlModule) Loader(L *lua.LState) int {
	mod := L.NewTable()

	L.SetField(mod, "key", L.NewFunction(m.key))
	L.SetField(mod, "keys", L.NewFunction(m.keys))
	L.SetField(mod, "click", L.NewFunction(m.click))
	L.SetField(mod, "move", L.NewFunction(m.move))
	L.SetField(mod, "type", L.NewFunction(m.typeText))
	L.SetField(mod, "open", L.NewFunction(m.open))
	L.SetField(mod, "navigate", L.NewFunction(m.navigate))
	L.SetField(mod, "mode", L.NewFunction(m.mode))
	L.SetField(mod, "sleep", L.NewFunction(m.sleep))
	L.SetField(mod, "log", L.NewFunction(m.log))

	L.Push(mod)
	return 1
}

func (m *CtlModule) run(L *lua.LState, d actions.Descriptor) int {
	if err := d.Validate(); err != nil {
		L.RaiseError("ctl.%s: %s", d.Kind, err.Error())
		return 0
	}
	if err := m.actx.Run(d); err != nil {
		L.RaiseError("ctl.%s failed: %s", d.Kind, err.Error())
	}
	return 0
}

// key("ctrl+c")
func (m *CtlModule) key(L *lua.LState) int {
	chord := L.CheckString(1)
	return m.run(L, actions.Descriptor{Kind: actions.KindKeyboard, Keys: strings.Split(chord, "+")})
}

// keys({"ctrl", "c"})
func (m *CtlModule) keys(L *lua.LState) int {
	tbl := L.CheckTable(1)
	var keys []string
	for i := 1; i <= tbl.Len(); i++ {
		keys = append(keys, lua.LVAsString(tbl.RawGetInt(i)))
	}
	return m.run(L, actions.Descriptor{Kind: actions.KindKeyboard, Keys: keys})
}

// click(x, y, count)
func (m *CtlModule) click(L *lua.LState) int {
	p := &actions.Point{X: L.CheckInt(1), Y: L.CheckInt(2)}
	count := L.OptInt(3, 1)
	return m.run(L, actions.Descriptor{Kind: actions.KindMouseClick, Position: p, ClickCount: count})
}

// move(x, y)
func (m *CtlModule) move(L *lua.LState) int {
	p := &actions.Point{X: L.CheckInt(1), Y: L.CheckInt(2)}
	return m.run(L, actions.Descriptor{Kind: actions.KindMouseMove, Position: p})
}

// type("hello")
func (m *CtlModule) typeText(L *lua.LState) int {
	return m.run(L, actions.Descriptor{Kind: actions.KindTypeText, Text: L.CheckString(1)})
}

// open(url, display)
func (m *CtlModule) open(L *lua.LState) int {
	d := actions.Descriptor{Kind: actions.KindOpenURL, URL: L.CheckString(1)}
	if L.Get(2) != lua.LNil {
		display := L.CheckInt(2)
		d.MoveToDisplay = &display
	}
	return m.run(L, d)
}

// navigate("down")
func (m *CtlModule) navigate(L *lua.LState) int {
	dir := strings.ToLower(L.CheckString(1))
	return m.run(L, actions.Descriptor{Kind: actions.KindNavigate, Direction: dir})
}

// mode("select")
func (m *CtlModule) mode(L *lua.LState) int {
	m.actx.RequestMode(L.CheckString(1))
	return 0
}

// sleep(seconds)
func (m *CtlModule) sleep(L *lua.LState) int {
	seconds := float64(L.CheckNumber(1))
	delay := time.Duration(seconds * float64(time.Second))
	return m.run(L, actions.Descriptor{Kind: actions.KindDelay, Delay: delay})
}

// log(msg, fields)
func (m *CtlModule) log(L *lua.LState) int {
	msg := L.CheckString(1)
	event := log.Info().Str("source", "lua")
	for k, v := range parseFields(L, 2) {
		event = event.Interface(k, v)
	}
	event.Msg(msg)
	return 0
}
