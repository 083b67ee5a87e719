package storage

import (
	"bytes"
	"sort"
	"time"

	"sphere/internal/models"

	"go.etcd.io/bbolt"
)

// UpsertStory saves an ephemeral story record.
func (s *BboltStorage) UpsertStory(story models.Story) error {
	if story.ID == "" || story.UserID == "" || story.ImageURL == "" {
		return ErrMissingField
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketStories)
		dbStory := DBStory{
			ID:        story.ID,
			UserID:    story.UserID,
			ImageURL:  story.ImageURL,
			CreatedAt: story.CreatedAt,
		}
		data, err := dbStory.MarshalBinary()
		if err != nil {
			return err
		}
		return b.Put(dbStory.Key(), data)
	})
}

// ListActiveStories returns stories younger than ttl, newest first. Expired
// records still present in storage are filtered out here and removed by the
// background sweep.
func (s *BboltStorage) ListActiveStories(now time.Time, ttl time.Duration) ([]models.Story, error) {
	cutoff := now.Add(-ttl).Unix()
	var stories []models.Story
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketStories)
		return b.ForEach(func(k, v []byte) error {
			var dbStory DBStory
			if err := dbStory.UnmarshalBinary(v); err != nil {
				return err
			}
			if dbStory.CreatedAt > cutoff {
				stories = append(stories, models.Story{
					ID:        dbStory.ID,
					UserID:    dbStory.UserID,
					ImageURL:  dbStory.ImageURL,
					CreatedAt: dbStory.CreatedAt,
				})
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(stories, func(i, j int) bool {
		return stories[i].CreatedAt > stories[j].CreatedAt
	})
	return stories, nil
}

// SweepExpiredStories deletes stories older than ttl and reports how many
// were removed.
func (s *BboltStorage) SweepExpiredStories(now time.Time, ttl time.Duration) (int, error) {
	cutoff := now.Add(-ttl).Unix()
	removed := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketStories)

		var expired [][]byte
		err := b.ForEach(func(k, v []byte) error {
			var dbStory DBStory
			if err := dbStory.UnmarshalBinary(v); err != nil {
				return err
			}
			if dbStory.CreatedAt <= cutoff {
				expired = append(expired, bytes.Clone(k))
			}
			return nil
		})
		if err != nil {
			return err
		}

		for _, k := range expired {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = len(expired)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}
