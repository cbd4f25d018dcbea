package vulkan

import "github.com/spaghettifunk/vkbase/engine/core"

type release struct {
	name string
	fn   func()
}

// ResourceStack records how to release each acquired resource. Release runs
// them newest first, so destruction is always the reverse of creation.
type ResourceStack struct {
	releases []release
}

// Push registers the release for a resource that was just acquired.
func (s *ResourceStack) Push(name string, fn func()) {
	s.releases = append(s.releases, release{name: name, fn: fn})
}

// Release releases every resource in reverse order and empties the stack.
func (s *ResourceStack) Release() {
	for i := len(s.releases) - 1; i >= 0; i-- {
		r := s.releases[i]
		core.LogDebug("Destroying %s...", r.name)
		r.fn()
	}
	s.releases = nil
}

func (s *ResourceStack) Len() int {
	return len(s.releases)
}

// Names lists the held resources in acquisition order.
func (s *ResourceStack) Names() []string {
	names := make([]string, len(s.releases))
	for i, r := range s.releases {
		names[i] = r.name
	}
	return names
}
