package models

import (
	"context"
)

type TaskStatus string

const (
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in_progress"
	TaskDone       TaskStatus = "done"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskTodo, TaskInProgress, TaskDone:
		return true
	}
	return false
}

// Project is a tenant-scoped container of tasks.
type Project struct {
	Base
	TenantOwned
	Name  string `gorm:"size:100;not null" json:"name" vanilla:"unique"`
	Tasks []Task `json:"tasks,omitempty"`
}

type Task struct {
	Base
	TenantOwned
	ProjectID uint       `gorm:"not null;index" json:"project_id"`
	Project   *Project   `json:"project,omitempty"`
	Title     string     `gorm:"size:200;not null" json:"title"`
	Status    TaskStatus `gorm:"size:20;not null;default:'todo'" json:"status"`
}

func (t *Task) Validate(context.Context) map[string]string {
	if t.Status != "" && !t.Status.Valid() {
		return map[string]string{"status": "Unknown status"}
	}
	return nil
}

// All lists every table the application migrates.
func All() []any {
	return []any{
		&Tenant{}, &Role{}, &Permission{}, &User{}, &UserAction{},
		&Post{}, &Comment{}, &Note{}, &Project{}, &Task{},
	}
}
