package models

import "time"

// Message is an immutable chat record. CreatedAt is assigned by the store.
type Message struct {
	ID        string    `gorm:"primaryKey;size:36" bson:"_id" json:"id"`
	Sender    string    `gorm:"size:191;not null;index:idx_chat_messages_pair,priority:1" bson:"sender" json:"sender"`
	Receiver  string    `gorm:"size:191;not null;index:idx_chat_messages_pair,priority:2" bson:"receiver" json:"recipient"`
	Content   string    `gorm:"type:text;not null" bson:"content" json:"text"`
	CreatedAt time.Time `gorm:"precision:3;not null;index:idx_chat_messages_pair,priority:3" bson:"createdAt" json:"timestamp"`
	UpdatedAt time.Time `gorm:"precision:3" bson:"updatedAt" json:"-"`
}

func (Message) TableName() string {
	return "chat_messages"
}
