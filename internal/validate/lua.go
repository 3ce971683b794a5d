package validate

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/cloudwright/cloudwright/internal/catalog"
)

// Script is one rulepack check, addressed by the pack-qualified name that
// shows up in findings.
type Script struct {
	Name string
	Path string
}

// RunCheck executes the script's global check(op) function against one
// operation. op carries service, operation, and a params table. The
// function returns an array of finding tables with message, and optional
// severity, field, and rule entries; severity defaults to info, as do
// severities the script invents.
func RunCheck(script Script, params catalog.ParameterSet, schema *catalog.OperationSchema) ([]Finding, error) {
	ls := lua.NewState()
	defer ls.Close()

	ls.PreloadModule("os", osModuleLoader)

	absPath, err := filepath.Abs(script.Path)
	if err != nil {
		return nil, fmt.Errorf("script path: %w", err)
	}
	if err := ls.DoFile(absPath); err != nil {
		return nil, fmt.Errorf("load script: %w", err)
	}

	fn := ls.GetGlobal("check")
	if fn.Type() != lua.LTFunction {
		return nil, fmt.Errorf("script must define a global function check(op)")
	}

	ls.Push(fn)
	ls.Push(operationTable(ls, params, schema))
	if err := ls.PCall(1, 1, nil); err != nil {
		return nil, fmt.Errorf("check(): %w", err)
	}

	ret := ls.Get(-1)
	ls.Pop(1)

	switch ret.Type() {
	case lua.LTNil:
		return nil, nil
	case lua.LTTable:
		return findingsFromTable(script.Name, ret.(*lua.LTable)), nil
	default:
		return nil, fmt.Errorf("check() must return a table of findings, got %s", ret.Type().String())
	}
}

// operationTable renders the operation for the script: op.service,
// op.operation, op.params.
func operationTable(ls *lua.LState, params catalog.ParameterSet, schema *catalog.OperationSchema) *lua.LTable {
	paramsTbl := ls.NewTable()
	for name, value := range params {
		ls.SetField(paramsTbl, name, luaValue(ls, value))
	}

	op := ls.NewTable()
	ls.SetField(op, "service", lua.LString(schema.Service))
	ls.SetField(op, "operation", lua.LString(schema.Operation))
	ls.SetField(op, "params", paramsTbl)
	return op
}

func luaValue(ls *lua.LState, v any) lua.LValue {
	switch val := v.(type) {
	case string:
		return lua.LString(val)
	case int:
		return lua.LNumber(val)
	case bool:
		return lua.LBool(val)
	case []string:
		tbl := ls.NewTable()
		for _, s := range val {
			tbl.Append(lua.LString(s))
		}
		return tbl
	case map[string]string:
		tbl := ls.NewTable()
		for k, s := range val {
			ls.SetField(tbl, k, lua.LString(s))
		}
		return tbl
	default:
		return lua.LString(fmt.Sprintf("%v", val))
	}
}

func findingsFromTable(scriptName string, tbl *lua.LTable) []Finding {
	var out []Finding
	tbl.ForEach(func(_, v lua.LValue) {
		entry, ok := v.(*lua.LTable)
		if !ok {
			return
		}
		f := Finding{Rule: scriptName, Severity: SeverityInfo}
		if s := entry.RawGetString("rule"); s.Type() == lua.LTString {
			f.Rule = scriptName + "/" + s.String()
		}
		if s := entry.RawGetString("severity"); s.Type() == lua.LTString {
			switch Severity(s.String()) {
			case SeverityBlocking, SeverityWarning, SeverityInfo:
				f.Severity = Severity(s.String())
			}
		}
		if s := entry.RawGetString("field"); s.Type() == lua.LTString {
			f.Field = s.String()
		}
		if s := entry.RawGetString("message"); s.Type() == lua.LTString {
			f.Message = s.String()
		}
		if f.Message == "" {
			return
		}
		out = append(out, f)
	})
	return out
}

// osModuleLoader exposes a minimal os module to scripts: getenv and time.
func osModuleLoader(ls *lua.LState) int {
	mod := ls.NewTable()
	ls.SetField(mod, "getenv", ls.NewFunction(func(inner *lua.LState) int {
		key := inner.CheckString(1)
		inner.Push(lua.LString(os.Getenv(key)))
		return 1
	}))
	ls.SetField(mod, "time", ls.NewFunction(func(inner *lua.LState) int {
		inner.Push(lua.LNumber(time.Now().Unix()))
		return 1
	}))
	ls.Push(mod)
	return 1
}
