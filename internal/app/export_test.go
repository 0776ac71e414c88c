package app

import "github.com/dkeye/Huddle/internal/domain"

func (r *Room) addDelegateForTest(name string) error {
	_, _, err := r.AddDelegate(domain.Delegate{Name: name}, nil)
	return err
}
