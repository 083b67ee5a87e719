package storage

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"sphere/internal/models"

	"go.etcd.io/bbolt"
)

var (
	bucketUsers         = []byte("users")
	bucketMessages      = []byte("messages")
	bucketPosts         = []byte("posts")
	bucketStories       = []byte("stories")
	bucketNotifications = []byte("notifications")
	bucketSubscriptions = []byte("subscriptions")
)

// ErrMissingField is returned when an insert is missing a required field.
// Surfaced to REST callers as a generic server error.
var ErrMissingField = errors.New("missing required field")

type BboltStorage struct {
	db *bbolt.DB
}

func NewBboltStorage(path string) (*BboltStorage, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketUsers); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(bucketMessages); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(bucketPosts); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(bucketStories); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(bucketNotifications); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(bucketSubscriptions); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &BboltStorage{db: db}, nil
}

func (s *BboltStorage) Close() error {
	return s.db.Close()
}

// AppendMessage validates and inserts one message, assigning the next
// sequence number within its conversation. Messages are append-only; nothing
// but the read flag is ever mutated afterwards.
func (s *BboltStorage) AppendMessage(message models.Message) (models.Message, error) {
	if message.ConversationID == "" || message.Sender == "" || message.Text == "" {
		return models.Message{}, ErrMissingField
	}

	if message.CreatedAt == 0 {
		message.CreatedAt = time.Now().Unix()
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		mainMsgBucket := tx.Bucket(bucketMessages)
		convBucket, err := mainMsgBucket.CreateBucketIfNotExists([]byte(message.ConversationID))
		if err != nil {
			return fmt.Errorf("failed to create conversation bucket: %w", err)
		}

		seq, err := convBucket.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to allocate sequence: %w", err)
		}
		message.Seq = int64(seq)

		dbMessage := DBMessage{
			Seq:            message.Seq,
			ConversationID: message.ConversationID,
			Sender:         message.Sender,
			Text:           message.Text,
			Read:           message.Read,
			IsGroup:        message.IsGroup,
			CreatedAt:      message.CreatedAt,
		}

		data, err := dbMessage.MarshalBinary()
		if err != nil {
			return fmt.Errorf("failed to marshal message: %w", err)
		}

		return convBucket.Put(dbMessage.Key(), data)
	})
	if err != nil {
		return models.Message{}, err
	}

	return message, nil
}

// ListMessages returns messages for a conversation in append order, starting
// after the given sequence number. A limit <= 0 means no cap.
func (s *BboltStorage) ListMessages(conversationID string, after int64, limit int) ([]models.Message, error) {
	var messages []models.Message
	err := s.db.View(func(tx *bbolt.Tx) error {
		mainMsgBucket := tx.Bucket(bucketMessages)
		convBucket := mainMsgBucket.Bucket([]byte(conversationID))
		if convBucket == nil {
			return nil // No messages for this conversation
		}

		c := convBucket.Cursor()

		minKey := make([]byte, 8)
		binary.BigEndian.PutUint64(minKey, uint64(after+1))

		for k, v := c.Seek(minKey); k != nil; k, v = c.Next() {
			var dbMsg DBMessage
			if err := dbMsg.UnmarshalBinary(v); err != nil {
				return err
			}
			messages = append(messages, models.Message{
				Seq:            dbMsg.Seq,
				ConversationID: dbMsg.ConversationID,
				Sender:         dbMsg.Sender,
				Text:           dbMsg.Text,
				Read:           dbMsg.Read,
				IsGroup:        dbMsg.IsGroup,
				CreatedAt:      dbMsg.CreatedAt,
			})
			if limit > 0 && len(messages) >= limit {
				return nil
			}
		}
		return nil
	})
	return messages, err
}

// MarkConversationRead flips read=true on every message in the conversation
// whose sender is not the given username. Monotonic (false to true only) and
// idempotent: re-invoking is a no-op on already-read messages.
func (s *BboltStorage) MarkConversationRead(conversationID, username string) (int, error) {
	flipped := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		mainMsgBucket := tx.Bucket(bucketMessages)
		convBucket := mainMsgBucket.Bucket([]byte(conversationID))
		if convBucket == nil {
			return nil
		}

		// Collect updates first: writing invalidates an open cursor.
		type update struct {
			key  []byte
			data []byte
		}
		var updates []update
		err := convBucket.ForEach(func(k, v []byte) error {
			var dbMsg DBMessage
			if err := dbMsg.UnmarshalBinary(v); err != nil {
				return err
			}
			if dbMsg.Read || dbMsg.Sender == username {
				return nil
			}
			dbMsg.Read = true
			data, err := dbMsg.MarshalBinary()
			if err != nil {
				return err
			}
			updates = append(updates, update{key: bytes.Clone(k), data: data})
			return nil
		})
		if err != nil {
			return err
		}

		for _, u := range updates {
			if err := convBucket.Put(u.key, u.data); err != nil {
				return err
			}
		}
		flipped = len(updates)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return flipped, nil
}
