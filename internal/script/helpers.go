package script

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// LuaToGo converts a Lua value to a Go value. Tables with only positive
// integer keys become slices; other tables become maps.
func LuaToGo(v lua.LValue) interface{} {
	switch val := v.(type) {
	case lua.LString:
		return string(val)
	case lua.LNumber:
		return float64(val)
	case lua.LBool:
		return bool(val)
	case *lua.LTable:
		isArray := true
		maxIdx := 0
		val.ForEach(func(k, _ lua.LValue) {
			num, ok := k.(lua.LNumber)
			if !ok || num < 1 {
				isArray = false
				return
			}
			if idx := int(num); idx > maxIdx {
				maxIdx = idx
			}
		})

		if isArray && maxIdx > 0 {
			arr := make([]interface{}, maxIdx)
			val.ForEach(func(k, v lua.LValue) {
				arr[int(k.(lua.LNumber))-1] = LuaToGo(v)
			})
			return arr
		}

		obj := make(map[string]interface{})
		val.ForEach(func(k, v lua.LValue) {
			obj[lua.LVAsString(k)] = LuaToGo(v)
		})
		return obj
	case *lua.LNilType:
		return nil
	default:
		return v.String()
	}
}

// GoToLuaValue converts a decoded JSON value to a Lua value.
func GoToLuaValue(L *lua.LState, v interface{}) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(val)
	case int:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case string:
		return lua.LString(val)
	case []interface{}:
		tbl := L.NewTable()
		for i, item := range val {
			tbl.RawSetInt(i+1, GoToLuaValue(L, item))
		}
		return tbl
	case map[string]interface{}:
		tbl := L.NewTable()
		for k, v := range val {
			tbl.RawSetString(k, GoToLuaValue(L, v))
		}
		return tbl
	default:
		return lua.LString(fmt.Sprintf("%v", v))
	}
}
