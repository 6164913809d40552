package hooks

import "github.com/arloliu/batchmut/types"

// NopHooks implements Hooks with no-op callbacks.
//
// This is the default implementation used when no custom hooks are provided,
// eliminating the need for nil checks throughout the codebase.
type NopHooks struct{}

// NewNop creates a new no-op hooks implementation.
//
// Returns:
//   - types.Hooks: Hooks with no-op implementations
func NewNop() types.Hooks {
	h := &NopHooks{}
	return types.Hooks{
		OnCycleComplete:       h.OnCycleComplete,
		OnResultDiscarded:     h.OnResultDiscarded,
		OnHandleAutoAbandoned: h.OnHandleAutoAbandoned,
	}
}

// OnCycleComplete is a no-op implementation.
func (h *NopHooks) OnCycleComplete(_ /* transformer */ string, _ /* total */, _ /* abandoned */ int) {
}

// OnResultDiscarded is a no-op implementation.
func (h *NopHooks) OnResultDiscarded(_ /* reason */ string) {}

// OnHandleAutoAbandoned is a no-op implementation.
func (h *NopHooks) OnHandleAutoAbandoned(_ /* cell */ types.Cell) {}
