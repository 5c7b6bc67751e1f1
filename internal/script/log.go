package script

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"
)

// LogModule provides logging functions to Lua
type LogModule struct{}

// NewLogModule creates a new log module
func NewLogModule() *LogModule {
	return &LogModule{}
}

// Loader is the module loader for Lua
func (m *LogModule) Loader(L *lua.LState) int {
	mod := L.NewTable()

	L.SetField(mod, "debug", L.NewFunction(m.at(zerolog.DebugLevel)))
	L.SetField(mod, "info", L.NewFunction(m.at(zerolog.InfoLevel)))
	L.SetField(mod, "warn", L.NewFunction(m.at(zerolog.WarnLevel)))
	L.SetField(mod, "error", L.NewFunction(m.at(zerolog.ErrorLevel)))

	L.Push(mod)
	return 1
}

func (m *LogModule) at(level zerolog.Level) lua.LGFunction {
	return func(L *lua.LState) int {
		msg := L.CheckString(1)

		event := log.WithLevel(level).Str("source", "lua")
		for k, v := range parseFields(L, 2) {
			event = event.Interface(k, v)
		}
		event.Msg(msg)
		return 0
	}
}

func parseFields(L *lua.LState, argIndex int) map[string]interface{} {
	fields := make(map[string]interface{})

	tbl, ok := L.Get(argIndex).(*lua.LTable)
	if !ok {
		return fields
	}
	tbl.ForEach(func(key, value lua.LValue) {
		fields[lua.LVAsString(key)] = LuaToGo(value)
	})
	return fields
}
