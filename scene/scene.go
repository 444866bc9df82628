package scene

import (
	"fmt"
	"sync"
)

// A Scene is an ordered collection of objects. It is marked dirty whenever
// its contents change and stays dirty until a renderer consumes the change.
type Scene struct {
	mutex   sync.Mutex
	objects []*Object
	dirty   bool
}

func NewScene() *Scene {
	return &Scene{
		objects: make([]*Object, 0),
	}
}

// Add an object to the scene.
func (s *Scene) Add(object *Object) error {
	if object == nil || object.Geometry == nil {
		return fmt.Errorf("scene: object has no geometry")
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	for _, obj := range s.objects {
		if obj == object {
			return fmt.Errorf("scene: object already added")
		}
	}
	s.objects = append(s.objects, object)
	s.dirty = true
	return nil
}

// Get a snapshot of the scene objects in insertion order.
func (s *Scene) Objects() []*Object {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return append([]*Object(nil), s.objects...)
}

func (s *Scene) Len() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.objects)
}

func (s *Scene) Dirty() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.dirty
}

// Flag the scene as modified. Must be called after mutating an object or
// geometry that has already been added.
func (s *Scene) MarkDirty() {
	s.mutex.Lock()
	s.dirty = true
	s.mutex.Unlock()
}

func (s *Scene) ClearDirty() {
	s.mutex.Lock()
	s.dirty = false
	s.mutex.Unlock()
}
