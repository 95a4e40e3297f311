package vm_test

import (
	"bytes"
	"math"
	"testing"

	_ "github.com/oyc-lang/oyc/internal/builtins/trace"
	"github.com/oyc-lang/oyc/internal/bytecode"
	"github.com/oyc-lang/oyc/internal/compiler"
	"github.com/oyc-lang/oyc/internal/lexer"
	"github.com/oyc-lang/oyc/internal/parser"
	"github.com/oyc-lang/oyc/internal/vm"
)

func compileModule(t *testing.T, src string) *bytecode.Module {
	t.Helper()
	p := parser.New(lexer.New(src))
	prog := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		t.Fatalf("parser errors: %v", errs)
	}
	mod, err := compiler.Compile(prog, "test")
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	return mod
}

// runTraced compiles and runs src as a top-level script (spec.md §4.2: the
// script itself is the implicit function, parameterized on argv), returning
// its result plus everything it wrote via trace().
func runTraced(t *testing.T, src string, argv ...vm.Value) (vm.Value, string) {
	t.Helper()
	mod := compileModule(t, src)
	var out bytes.Buffer
	machine := vm.New(func(string) (string, error) { return "", nil })
	machine.SetOutput(&out)
	result, err := machine.RunModule(mod, ".", argv)
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	return result, out.String()
}

func TestArithmeticIntStaysInt(t *testing.T) {
	v, _ := runTraced(t, `return 2 + 3 * 4;`)
	if v.Kind != vm.KindInt || v.I != 14 {
		t.Fatalf("expected int 14, got %#v", v)
	}
}

func TestArithmeticFloatPromotion(t *testing.T) {
	v, _ := runTraced(t, `return 1 + 0.5;`)
	if v.Kind != vm.KindFloat || v.F != 1.5 {
		t.Fatalf("expected float 1.5, got %#v", v)
	}
}

func TestStringConcatenation(t *testing.T) {
	v, _ := runTraced(t, `return "a" + "b";`)
	if v.Kind != vm.KindString || v.S != "ab" {
		t.Fatalf("expected \"ab\", got %#v", v)
	}
}

func TestIntDivisionByZeroIsRuntimeError(t *testing.T) {
	mod := compileModule(t, `return 1 / 0;`)
	machine := vm.New(func(string) (string, error) { return "", nil })
	_, err := machine.RunModule(mod, ".", nil)
	if err == nil {
		t.Fatalf("expected a runtime error dividing int by zero")
	}
}

func TestFloatDivisionByZeroIsInfinity(t *testing.T) {
	v, _ := runTraced(t, `return 1.0 / 0.0;`)
	if v.Kind != vm.KindFloat || !math.IsInf(v.F, 1) {
		t.Fatalf("expected +Inf, got %#v", v)
	}
}

func TestArrayGrowthGapFillsWithNull(t *testing.T) {
	v, _ := runTraced(t, `
auto a = [] {};
a[3] = 9;
return a;
`)
	if v.Kind != vm.KindArray {
		t.Fatalf("expected array, got %#v", v)
	}
	if len(v.Arr.Items) != 4 {
		t.Fatalf("expected length 4 after gap-fill, got %d", len(v.Arr.Items))
	}
	for i := 0; i < 3; i++ {
		if v.Arr.Items[i].Kind != vm.KindNull {
			t.Fatalf("expected gap-filled slot %d to be null, got %#v", i, v.Arr.Items[i])
		}
	}
	if v.Arr.Items[3].Kind != vm.KindInt || v.Arr.Items[3].I != 9 {
		t.Fatalf("expected slot 3 to be 9, got %#v", v.Arr.Items[3])
	}
}

func TestArrayOutOfRangeReadYieldsVoid(t *testing.T) {
	v, _ := runTraced(t, `
auto a = [] {1, 2};
return a[9];
`)
	if v.Kind != vm.KindVoid {
		t.Fatalf("expected void for an out-of-range read, got %#v", v)
	}
}

func TestArrayDeleteTruncatesTail(t *testing.T) {
	v, _ := runTraced(t, `
auto a = [] {0, 1, 2, 3, 4, 5};
delete a[3];
return a;
`)
	if len(v.Arr.Items) != 3 {
		t.Fatalf("expected truncation to length 3, got %d", len(v.Arr.Items))
	}
	for i, want := range []int64{0, 1, 2} {
		if v.Arr.Items[i].I != want {
			t.Fatalf("slot %d: expected %d, got %#v", i, want, v.Arr.Items[i])
		}
	}
}

func TestStructOrderedInsertAndDelete(t *testing.T) {
	v, _ := runTraced(t, `
auto s = struct {};
s["foo"] = 1;
s["bar"] = 2;
s["haha"] = "^_^";
delete s["foo"];
return s;
`)
	if v.Kind != vm.KindStruct {
		t.Fatalf("expected struct, got %#v", v)
	}
	if len(v.Struc.Keys) != 2 {
		t.Fatalf("expected 2 keys after delete, got %d", len(v.Struc.Keys))
	}
	if v.Struc.Keys[0].S != "bar" || v.Struc.Keys[1].S != "haha" {
		t.Fatalf("expected insertion order [bar, haha], got %v", v.Struc.Keys)
	}
}

func TestStructMixedKeyTypesCoexist(t *testing.T) {
	v, _ := runTraced(t, `
auto s = struct {};
s[5] = "int-five";
s["5"] = "string-five";
return s;
`)
	if len(v.Struc.Keys) != 2 {
		t.Fatalf("expected int key 5 and string key \"5\" to coexist, got %d keys", len(v.Struc.Keys))
	}
}

func TestMissingKeyYieldsVoidNotNull(t *testing.T) {
	v, _ := runTraced(t, `
auto s = struct {};
return s["missing"];
`)
	if v.Kind != vm.KindVoid {
		t.Fatalf("expected void for a missing key, got %#v", v)
	}
}

func TestTraceOutputFormat(t *testing.T) {
	_, out := runTraced(t, `trace(null, true, 1, 1.5, "hi", [] {0, 1});`)
	want := "null true 1 1.5 \"hi\" [] {0, 1}\n"
	if out != want {
		t.Fatalf("trace output mismatch:\n got: %q\nwant: %q", out, want)
	}
}

func TestTypeofAndSizeof(t *testing.T) {
	v, _ := runTraced(t, `
auto a = [] {1, 2, 3};
return typeof(a) + " " + str(sizeof(a));
`)
	if v.S != "array 3" {
		t.Fatalf("expected \"array 3\", got %q", v.S)
	}
}

func TestCastRoundTrips(t *testing.T) {
	v, _ := runTraced(t, `return int(float(7));`)
	if v.Kind != vm.KindInt || v.I != 7 {
		t.Fatalf("expected int(float(7)) == 7, got %#v", v)
	}
	v, _ = runTraced(t, `return str(int("100"));`)
	if v.S != "100" {
		t.Fatalf("expected str(int(\"100\")) == \"100\", got %q", v.S)
	}
}

func TestShortCircuitAndSkipsRHS(t *testing.T) {
	_, out := runTraced(t, `
auto count = 0;
auto inc = () {
  count = count + 1;
  return true;
};
auto r = false && inc();
trace(count);
`)
	if out != "0\n" {
		t.Fatalf("expected && to short-circuit without calling rhs, got %q", out)
	}
}

func TestShortCircuitOrSkipsRHS(t *testing.T) {
	_, out := runTraced(t, `
auto count = 0;
auto inc = () {
  count = count + 1;
  return true;
};
auto r = true || inc();
trace(count);
`)
	if out != "0\n" {
		t.Fatalf("expected || to short-circuit without calling rhs, got %q", out)
	}
}

func TestClosureSharesUpvalueAcrossInvocations(t *testing.T) {
	_, out := runTraced(t, `
auto counter = () {
  auto n = 0;
  return () {
    n = n + 1;
    return n;
  };
};
auto c = counter();
trace(c());
trace(c());
trace(c());
`)
	if out != "1\n2\n3\n" {
		t.Fatalf("expected shared upvalue counting 1,2,3, got %q", out)
	}
}

func TestClosureCapturingBlockScopedLocalSurvivesBlockExit(t *testing.T) {
	_, out := runTraced(t, `
auto makeGetter = () {
  auto fns = [] {};
  {
    auto x = 10;
    fns[0] = () { return x; };
  }
  auto y = 99;
  return fns;
};
auto fns = makeGetter();
trace(fns[0]());
`)
	if out != "10\n" {
		t.Fatalf("expected closure to still observe its captured local after block exit, got %q", out)
	}
}

func TestForeachArrayReadsCurrentLengthEachStep(t *testing.T) {
	_, out := runTraced(t, `
auto a = [] {0, 1};
foreach (auto k, v : a) {
  trace(v);
  if (v == 0) {
    a[2] = 2;
  }
}
`)
	if out != "0\n1\n2\n" {
		t.Fatalf("expected array foreach to see appended element, got %q", out)
	}
}

func TestForeachStructSnapshotsKeysAtInit(t *testing.T) {
	_, out := runTraced(t, `
auto s = struct {};
s["a"] = 1;
s["b"] = 2;
foreach (auto k, v : s) {
  trace(k);
  if (k == "a") {
    s["c"] = 3;
  }
}
`)
	if out != "\"a\"\n\"b\"\n" {
		t.Fatalf("expected struct foreach to ignore keys added mid-iteration, got %q", out)
	}
}

func TestSwitchFallthroughWithoutBreak(t *testing.T) {
	_, out := runTraced(t, `
switch (9) {
case 9:
  trace("9a");
case 10:
  trace("9b");
  break;
case 11:
  trace("9c");
default:
  trace("9d");
}
`)
	if out != "\"9a\"\n\"9b\"\n" {
		t.Fatalf("expected fall-through from case 9 into case 10 then break, got %q", out)
	}
}

func TestRequireResolvesRelativeToScriptDir(t *testing.T) {
	mod := compileModule(t, `
auto mod = require("lib.oyc", "hi", "hello");
trace(mod);
`)
	loaded := map[string]bool{}
	loader := func(path string) (string, error) {
		loaded[path] = true
		return `return argv[0] + argv[1];`, nil
	}
	var out bytes.Buffer
	machine := vm.New(loader)
	machine.SetOutput(&out)
	_, err := machine.RunModule(mod, "scripts", nil)
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	if !loaded["scripts/lib.oyc"] {
		t.Fatalf("expected require to resolve relative to script dir, loaded: %v", loaded)
	}
	if out.String() != "\"hihello\"\n" {
		t.Fatalf("expected concatenated argv, got %q", out.String())
	}
}

func TestInstructionLimitAbortsLongLoop(t *testing.T) {
	mod := compileModule(t, `
auto i = 0;
while (true) {
  i = i + 1;
}
return i;
`)
	machine := vm.New(func(string) (string, error) { return "", nil })
	machine.SetInstructionLimit(1000)
	_, err := machine.RunModule(mod, ".", nil)
	if err == nil {
		t.Fatalf("expected instruction limit to abort an infinite loop")
	}
}

func TestMaxFramesAbortsUnboundedRequireRecursion(t *testing.T) {
	mod := compileModule(t, `return require("x.oyc");`)
	loader := func(string) (string, error) { return `return require("x.oyc");`, nil }
	machine := vm.New(loader)
	machine.SetMaxFrames(50)
	_, err := machine.RunModule(mod, ".", nil)
	if err == nil {
		t.Fatalf("expected max-frames limit to abort unbounded require recursion")
	}
}
