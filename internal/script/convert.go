package script

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/juju/errors"
	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/reqhub/internal/requisition"
)

// toLua converts a requisition payload into a Lua value by way of its JSON
// form, so scripts see the same field names as the wire.
func toLua(L *lua.LState, payload any) (lua.LValue, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return lua.LNil, errors.Annotate(err, "encoding payload")
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return lua.LNil, errors.Annotate(err, "decoding payload")
	}
	return goToLua(L, v), nil
}

// fromLua converts a Lua value into the typed payload of name.
func fromLua(name requisition.Name, lv lua.LValue) (any, error) {
	v := luaToGo(lv, make(map[*lua.LTable]bool))

	// An empty table converts to an object; list payloads want null.
	if m, ok := v.(map[string]any); ok && len(m) == 0 {
		if t, ok := requisition.PayloadType(name); ok && t.Kind() == reflect.Slice {
			v = nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Annotatef(err, "encoding %q parameter", name)
	}
	return requisition.Decode(name, data)
}

func goToLua(L *lua.LState, v any) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(val)
	case float64:
		return lua.LNumber(val)
	case string:
		return lua.LString(val)
	case []any:
		t := L.NewTable()
		for i, item := range val {
			t.RawSetInt(i+1, goToLua(L, item))
		}
		return t
	case map[string]any:
		t := L.NewTable()
		for k, item := range val {
			t.RawSetString(k, goToLua(L, item))
		}
		return t
	default:
		return lua.LString(fmt.Sprint(val))
	}
}

func luaToGo(lv lua.LValue, visited map[*lua.LTable]bool) any {
	switch v := lv.(type) {
	case lua.LBool:
		return bool(v)
	case lua.LNumber:
		f := float64(v)
		if f == float64(int64(f)) {
			return int64(f)
		}
		return f
	case lua.LString:
		return string(v)
	case *lua.LTable:
		if visited[v] {
			return nil
		}
		visited[v] = true
		defer delete(visited, v)
		return tableToGo(v, visited)
	default:
		return nil
	}
}

// tableToGo returns a slice for tables with contiguous integer keys from 1
// and a map otherwise.
func tableToGo(t *lua.LTable, visited map[*lua.LTable]bool) any {
	isArray := true
	maxN, count := 0, 0
	t.ForEach(func(k, _ lua.LValue) {
		count++
		if kn, ok := k.(lua.LNumber); ok {
			n := int(kn)
			if float64(n) == float64(kn) && n > 0 {
				maxN = max(maxN, n)
				return
			}
		}
		isArray = false
	})

	if isArray && maxN > 0 && count == maxN {
		arr := make([]any, maxN)
		for i := 1; i <= maxN; i++ {
			arr[i-1] = luaToGo(t.RawGetInt(i), visited)
		}
		return arr
	}

	m := make(map[string]any, count)
	t.ForEach(func(k, v lua.LValue) {
		var key string
		switch kv := k.(type) {
		case lua.LString:
			key = string(kv)
		case lua.LNumber:
			key = fmt.Sprintf("%v", float64(kv))
		default:
			key = k.String()
		}
		m[key] = luaToGo(v, visited)
	})
	return m
}
