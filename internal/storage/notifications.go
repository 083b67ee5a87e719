package storage

import (
	"fmt"
	"sort"

	"sphere/internal/models"

	"go.etcd.io/bbolt"
)

// AppendNotification stores one durable notification record.
func (s *BboltStorage) AppendNotification(n models.Notification) error {
	if n.ID == "" || n.Sender == "" || n.Receiver == "" || n.Type == "" {
		return ErrMissingField
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketNotifications)
		dbNotif := DBNotification{
			ID:        n.ID,
			Sender:    n.Sender,
			Receiver:  n.Receiver,
			Type:      string(n.Type),
			Post:      n.Post,
			Read:      n.Read,
			CreatedAt: n.CreatedAt,
		}
		data, err := dbNotif.MarshalBinary()
		if err != nil {
			return err
		}
		return b.Put(dbNotif.Key(), data)
	})
}

// ListNotifications returns the receiver's notifications, newest first.
func (s *BboltStorage) ListNotifications(receiver string) ([]models.Notification, error) {
	var notifs []models.Notification
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketNotifications)
		return b.ForEach(func(k, v []byte) error {
			var dbNotif DBNotification
			if err := dbNotif.UnmarshalBinary(v); err != nil {
				return err
			}
			if dbNotif.Receiver != receiver {
				return nil
			}
			notifs = append(notifs, models.Notification{
				ID:        dbNotif.ID,
				Sender:    dbNotif.Sender,
				Receiver:  dbNotif.Receiver,
				Type:      models.NotificationType(dbNotif.Type),
				Post:      dbNotif.Post,
				Read:      dbNotif.Read,
				CreatedAt: dbNotif.CreatedAt,
			})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(notifs, func(i, j int) bool {
		if notifs[i].CreatedAt != notifs[j].CreatedAt {
			return notifs[i].CreatedAt > notifs[j].CreatedAt
		}
		return notifs[i].ID > notifs[j].ID
	})
	return notifs, nil
}

// UpsertSubscription stores a user's web-push subscription, replacing any
// previous one for the same user.
func (s *BboltStorage) UpsertSubscription(sub models.PushSubscription) error {
	if sub.UserID == "" || sub.Endpoint == "" {
		return ErrMissingField
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketSubscriptions)
		dbSub := DBSubscription{
			UserID:   sub.UserID,
			Endpoint: sub.Endpoint,
			P256dh:   sub.P256dh,
			Auth:     sub.Auth,
		}
		data, err := dbSub.MarshalBinary()
		if err != nil {
			return err
		}
		return b.Put(dbSub.Key(), data)
	})
}

func (s *BboltStorage) GetSubscription(userID string) (models.PushSubscription, error) {
	var sub models.PushSubscription
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketSubscriptions)
		data := b.Get([]byte(userID))
		if data == nil {
			return fmt.Errorf("subscription for %s: %w", userID, models.ErrNotFound)
		}
		var dbSub DBSubscription
		if err := dbSub.UnmarshalBinary(data); err != nil {
			return err
		}
		sub = models.PushSubscription{
			UserID:   dbSub.UserID,
			Endpoint: dbSub.Endpoint,
			P256dh:   dbSub.P256dh,
			Auth:     dbSub.Auth,
		}
		return nil
	})
	return sub, err
}
