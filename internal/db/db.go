package db

import (
	"log"

	"github.com/peachgram/chat-backend/internal/chat"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func Connect(dsn string) *gorm.DB {
	gdb, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}

	if err := gdb.AutoMigrate(&chat.Room{}, &chat.Member{}, &chat.Message{}); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
	return gdb
}
