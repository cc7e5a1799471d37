package models

import (
	"gorm.io/datatypes"
)

// Post is an owned entry with a free-form JSON payload.
type Post struct {
	Base
	Owned
	SomeText    string         `gorm:"size:255" json:"some_text"`
	JSONColumns datatypes.JSON `gorm:"column:json_columns" json:"json_columns"`
	Comments    []Comment      `json:"comments,omitempty"`
}

// Comment belongs to a post; the post must exist and be writable by the
// commenter.
type Comment struct {
	Base
	Owned
	PostID uint   `gorm:"not null;index" json:"post_id"`
	Post   *Post  `json:"post,omitempty"`
	Text   string `gorm:"type:text;not null" json:"text"`
}

// Note exercises every field flavour: a unique name, a private, a protected
// and an immutable number.
type Note struct {
	Base
	Owned
	Name    string `gorm:"size:100;not null" json:"name" vanilla:"unique"`
	Number1 int    `json:"-" vanilla:"private"`
	Number2 int    `json:"number2" vanilla:"protected"`
	Number3 int    `json:"number3" vanilla:"immutable"`
}
