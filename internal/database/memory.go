package database

import "github.com/Tomlord1122/todo-store/internal/config"

// Memory reports health for the in-process substrate.
type Memory struct{}

func (Memory) Health() map[string]string {
	return map[string]string{
		"status":  "up",
		"backend": config.BackendMemory,
		"message": "It's healthy",
	}
}

func (Memory) Close() error { return nil }
