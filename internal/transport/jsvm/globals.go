package jsvm

import (
	"strings"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// newRuntime builds an engine with the globals a page sees: window, the two
// native pipes, console and timers.
func (e *Env) newRuntime() *goja.Runtime {
	vm := goja.New()
	if e.config.MaxCallStackSize > 0 {
		vm.SetMaxCallStackSize(e.config.MaxCallStackSize)
	}

	// Remove host globals
	vm.Set("require", goja.Undefined())
	vm.Set("process", goja.Undefined())
	vm.Set("module", goja.Undefined())
	vm.Set("exports", goja.Undefined())

	vm.Set("window", vm.GlobalObject())

	normalPipe := vm.NewObject()
	normalPipe.Set("postMessage", func(call goja.FunctionCall) goja.Value {
		if data, ok := stringArg(call, 0); ok {
			e.currentInbound().Message(data)
		}
		return goja.Undefined()
	})
	vm.Set("normalPipe", normalPipe)

	consolePipe := vm.NewObject()
	consolePipe.Set("receiveConsole", func(call goja.FunctionCall) goja.Value {
		data, _ := stringArg(call, 0)
		e.currentInbound().Console(data)
		return goja.Undefined()
	})
	vm.Set("consolePipe", consolePipe)

	console := vm.NewObject()
	console.Set("log", e.makeConsoleFunc("log"))
	console.Set("info", e.makeConsoleFunc("info"))
	console.Set("warn", e.makeConsoleFunc("warn"))
	console.Set("error", e.makeConsoleFunc("error"))
	vm.Set("console", console)

	vm.Set("setTimeout", e.setTimeout(vm))
	vm.Set("clearTimeout", e.clearTimeout)
	vm.Set("setInterval", func(call goja.FunctionCall) goja.Value {
		return goja.Undefined()
	})

	return vm
}

// stringArg returns argument i as a string, treating null and undefined as absent.
func stringArg(call goja.FunctionCall, i int) (string, bool) {
	arg := call.Argument(i)
	if goja.IsUndefined(arg) || goja.IsNull(arg) {
		return "", false
	}
	return arg.String(), true
}

// makeConsoleFunc creates a console function
func (e *Env) makeConsoleFunc(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		msg := strings.Join(parts, " ")

		e.log.Debug("console", zap.String("level", level), zap.String("message", msg))
		if e.config.KeepConsole <= 0 {
			return goja.Undefined()
		}

		e.mu.Lock()
		e.console = append(e.console, LogEntry{Level: level, Message: msg, Time: time.Now()})
		if over := len(e.console) - e.config.KeepConsole; over > 0 {
			e.console = e.console[over:]
		}
		e.mu.Unlock()

		return goja.Undefined()
	}
}

// setTimeout schedules fn on the loop after the delay. Timers die with the
// page that created them.
func (e *Env) setTimeout(vm *goja.Runtime) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		fn, ok := goja.AssertFunction(call.Argument(0))
		if !ok {
			return goja.Undefined()
		}
		delay := time.Duration(call.Argument(1).ToInteger()) * time.Millisecond
		args := append([]goja.Value(nil), call.Arguments[min(2, len(call.Arguments)):]...)

		e.loopOnly.timerSeq++
		id := e.loopOnly.timerSeq
		gen := e.loopOnly.generation

		e.loopOnly.timers[id] = time.AfterFunc(delay, func() {
			_ = e.enqueue(func() {
				if e.loopOnly.generation != gen {
					return
				}
				if _, live := e.loopOnly.timers[id]; !live {
					return
				}
				delete(e.loopOnly.timers, id)
				if _, err := e.exec(func(*goja.Runtime) (goja.Value, error) { return fn(goja.Undefined(), args...) }); err != nil {
					e.log.Warn("Timer callback failed", zap.Error(err))
				}
			})
		})
		return vm.ToValue(id)
	}
}

func (e *Env) clearTimeout(call goja.FunctionCall) goja.Value {
	id := call.Argument(0).ToInteger()
	if t, ok := e.loopOnly.timers[id]; ok {
		t.Stop()
		delete(e.loopOnly.timers, id)
	}
	return goja.Undefined()
}
