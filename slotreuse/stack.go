package slotreuse

import "github.com/speakeasy-api/poolopt"

// valueStack is the work list of the backward dependency walk.
type valueStack struct {
	data []poolopt.ValueID
}

func newValueStack() *valueStack {
	return &valueStack{
		data: make([]poolopt.ValueID, 0, 32),
	}
}

func (s *valueStack) push(vs ...poolopt.ValueID) {
	s.data = append(s.data, vs...)
}

// pop removes and returns the top value.
// Panics if stack is empty.
func (s *valueStack) pop() poolopt.ValueID {
	if len(s.data) == 0 {
		panic("value stack underflow")
	}
	v := s.data[len(s.data)-1]
	s.data = s.data[:len(s.data)-1]
	return v
}

func (s *valueStack) empty() bool {
	return len(s.data) == 0
}
