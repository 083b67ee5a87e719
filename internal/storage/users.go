package storage

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"sphere/internal/models"

	"go.etcd.io/bbolt"
)

func userFromDB(u DBUser) models.User {
	return models.User{
		ID:         u.ID,
		Username:   u.Username,
		ProfilePic: u.ProfilePic,
		Bio:        u.Bio,
		Followers:  u.Followers,
		Following:  u.Following,
		Saved:      u.Saved,
		CreatedAt:  u.CreatedAt,
	}
}

// UpsertUser saves a user record to the database.
func (s *BboltStorage) UpsertUser(user models.User) error {
	if user.ID == "" || user.Username == "" {
		return ErrMissingField
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketUsers)
		dbUser := &DBUser{
			ID:         user.ID,
			Username:   user.Username,
			ProfilePic: user.ProfilePic,
			Bio:        user.Bio,
			Followers:  user.Followers,
			Following:  user.Following,
			Saved:      user.Saved,
			CreatedAt:  user.CreatedAt,
		}
		data, err := dbUser.MarshalBinary()
		if err != nil {
			return err
		}
		return b.Put(dbUser.Key(), data)
	})
}

func (s *BboltStorage) GetUser(id string) (models.User, error) {
	var user models.User
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketUsers)
		data := b.Get([]byte(id))
		if data == nil {
			return models.ErrNotFound
		}
		var dbUser DBUser
		if err := dbUser.UnmarshalBinary(data); err != nil {
			return err
		}
		user = userFromDB(dbUser)
		return nil
	})
	return user, err
}

// SearchUsers returns up to limit users whose username contains the query,
// case-insensitive, sorted by username.
func (s *BboltStorage) SearchUsers(query string, limit int) ([]models.User, error) {
	needle := strings.ToLower(query)
	var users []models.User
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketUsers)
		return b.ForEach(func(k, v []byte) error {
			var dbUser DBUser
			if err := dbUser.UnmarshalBinary(v); err != nil {
				return err
			}
			if strings.Contains(strings.ToLower(dbUser.Username), needle) {
				users = append(users, userFromDB(dbUser))
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(users, func(i, j int) bool {
		return users[i].Username < users[j].Username
	})
	if limit > 0 && len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}

// ToggleFollow makes followerID follow targetID, or unfollow if already
// following. Both user records are updated in one transaction. Returns
// whether the follower now follows the target.
func (s *BboltStorage) ToggleFollow(targetID, followerID string) (bool, error) {
	var followed bool
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketUsers)

		target, err := getDBUser(b, targetID)
		if err != nil {
			return err
		}
		follower, err := getDBUser(b, followerID)
		if err != nil {
			return err
		}

		if slices.Contains(target.Followers, followerID) {
			target.Followers = slices.DeleteFunc(target.Followers, func(id string) bool { return id == followerID })
			follower.Following = slices.DeleteFunc(follower.Following, func(id string) bool { return id == targetID })
		} else {
			target.Followers = append(target.Followers, followerID)
			follower.Following = append(follower.Following, targetID)
			followed = true
		}

		if err := putDBUser(b, target); err != nil {
			return err
		}
		return putDBUser(b, follower)
	})
	return followed, err
}

// ToggleSavedPost saves or unsaves a post on the user record. Returns whether
// the post is now saved.
func (s *BboltStorage) ToggleSavedPost(userID, postID string) (bool, error) {
	var saved bool
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketUsers)
		user, err := getDBUser(b, userID)
		if err != nil {
			return err
		}

		if slices.Contains(user.Saved, postID) {
			user.Saved = slices.DeleteFunc(user.Saved, func(id string) bool { return id == postID })
		} else {
			user.Saved = append(user.Saved, postID)
			saved = true
		}
		return putDBUser(b, user)
	})
	return saved, err
}

// DeleteUser removes the user record. Posts, messages and follow references
// held by other records are left in place.
func (s *BboltStorage) DeleteUser(id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketUsers)
		if b.Get([]byte(id)) == nil {
			return fmt.Errorf("user %s: %w", id, models.ErrNotFound)
		}
		return b.Delete([]byte(id))
	})
}

// UpdateProfile sets the user's bio and optional profile picture URL.
func (s *BboltStorage) UpdateProfile(id, bio, profilePic string) (models.User, error) {
	var user models.User
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketUsers)
		dbUser, err := getDBUser(b, id)
		if err != nil {
			return err
		}
		dbUser.Bio = bio
		if profilePic != "" {
			dbUser.ProfilePic = profilePic
		}
		if err := putDBUser(b, dbUser); err != nil {
			return err
		}
		user = userFromDB(*dbUser)
		return nil
	})
	return user, err
}

func getDBUser(b *bbolt.Bucket, id string) (*DBUser, error) {
	data := b.Get([]byte(id))
	if data == nil {
		return nil, fmt.Errorf("user %s: %w", id, models.ErrNotFound)
	}
	var dbUser DBUser
	if err := dbUser.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return &dbUser, nil
}

func putDBUser(b *bbolt.Bucket, u *DBUser) error {
	data, err := u.MarshalBinary()
	if err != nil {
		return err
	}
	return b.Put(u.Key(), data)
}
