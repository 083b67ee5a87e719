package storage

import (
	"fmt"
	"slices"
	"sort"

	"sphere/internal/models"

	"go.etcd.io/bbolt"
)

func postFromDB(p DBPost) models.Post {
	post := models.Post{
		ID:        p.ID,
		Author:    p.Author,
		Content:   p.Content,
		ImageURL:  p.ImageURL,
		Hashtags:  p.Hashtags,
		Location:  p.Location,
		Likes:     p.Likes,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
	if len(p.Comments) > 0 {
		post.Comments = make([]models.Comment, len(p.Comments))
		for i, c := range p.Comments {
			post.Comments[i] = models.Comment{
				User:      c.User,
				Text:      c.Text,
				CreatedAt: c.CreatedAt,
			}
		}
	}
	return post
}

func postToDB(post models.Post) DBPost {
	dbPost := DBPost{
		ID:        post.ID,
		Author:    post.Author,
		Content:   post.Content,
		ImageURL:  post.ImageURL,
		Hashtags:  post.Hashtags,
		Location:  post.Location,
		Likes:     post.Likes,
		CreatedAt: post.CreatedAt,
		UpdatedAt: post.UpdatedAt,
	}
	if len(post.Comments) > 0 {
		dbPost.Comments = make([]DBComment, len(post.Comments))
		for i, c := range post.Comments {
			dbPost.Comments[i] = DBComment{
				User:      c.User,
				Text:      c.Text,
				CreatedAt: c.CreatedAt,
			}
		}
	}
	return dbPost
}

// UpsertPost saves a post to the database.
func (s *BboltStorage) UpsertPost(post models.Post) error {
	if post.ID == "" || post.Author == "" || post.Content == "" {
		return ErrMissingField
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketPosts)
		dbPost := postToDB(post)
		data, err := dbPost.MarshalBinary()
		if err != nil {
			return err
		}
		return b.Put(dbPost.Key(), data)
	})
}

func (s *BboltStorage) GetPost(id string) (models.Post, error) {
	var post models.Post
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketPosts)
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("post %s: %w", id, models.ErrNotFound)
		}
		var dbPost DBPost
		if err := dbPost.UnmarshalBinary(data); err != nil {
			return err
		}
		post = postFromDB(dbPost)
		return nil
	})
	return post, err
}

func (s *BboltStorage) DeletePost(id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketPosts)
		if b.Get([]byte(id)) == nil {
			return fmt.Errorf("post %s: %w", id, models.ErrNotFound)
		}
		return b.Delete([]byte(id))
	})
}

// listPosts returns posts matching the filter, newest first.
func (s *BboltStorage) listPosts(match func(DBPost) bool) ([]models.Post, error) {
	var posts []models.Post
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketPosts)
		return b.ForEach(func(k, v []byte) error {
			var dbPost DBPost
			if err := dbPost.UnmarshalBinary(v); err != nil {
				return err
			}
			if match == nil || match(dbPost) {
				posts = append(posts, postFromDB(dbPost))
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(posts, func(i, j int) bool {
		if posts[i].CreatedAt != posts[j].CreatedAt {
			return posts[i].CreatedAt > posts[j].CreatedAt
		}
		return posts[i].ID > posts[j].ID
	})
	return posts, nil
}

// ListPosts returns one page of the global feed, newest first. Pages are
// 1-based, mirroring the client contract.
func (s *BboltStorage) ListPosts(page, limit int) ([]models.Post, error) {
	posts, err := s.listPosts(nil)
	if err != nil {
		return nil, err
	}

	if page < 1 {
		page = 1
	}
	skip := (page - 1) * limit
	if skip >= len(posts) {
		return nil, nil
	}
	posts = posts[skip:]
	if limit > 0 && len(posts) > limit {
		posts = posts[:limit]
	}
	return posts, nil
}

func (s *BboltStorage) ListUserPosts(author string) ([]models.Post, error) {
	return s.listPosts(func(p DBPost) bool { return p.Author == author })
}

func (s *BboltStorage) ListPostsByTag(tag string) ([]models.Post, error) {
	return s.listPosts(func(p DBPost) bool { return slices.Contains(p.Hashtags, tag) })
}

// ToggleLike likes the post for the user, or removes the like if present.
// Returns whether the post is now liked by the user.
func (s *BboltStorage) ToggleLike(postID, userID string) (bool, error) {
	var liked bool
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketPosts)
		data := b.Get([]byte(postID))
		if data == nil {
			return fmt.Errorf("post %s: %w", postID, models.ErrNotFound)
		}
		var dbPost DBPost
		if err := dbPost.UnmarshalBinary(data); err != nil {
			return err
		}

		if slices.Contains(dbPost.Likes, userID) {
			dbPost.Likes = slices.DeleteFunc(dbPost.Likes, func(id string) bool { return id == userID })
		} else {
			dbPost.Likes = append(dbPost.Likes, userID)
			liked = true
		}

		updated, err := dbPost.MarshalBinary()
		if err != nil {
			return err
		}
		return b.Put(dbPost.Key(), updated)
	})
	return liked, err
}

// AddComment appends a comment to the post and returns the updated post.
func (s *BboltStorage) AddComment(postID string, comment models.Comment) (models.Post, error) {
	var post models.Post
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketPosts)
		data := b.Get([]byte(postID))
		if data == nil {
			return fmt.Errorf("post %s: %w", postID, models.ErrNotFound)
		}
		var dbPost DBPost
		if err := dbPost.UnmarshalBinary(data); err != nil {
			return err
		}

		dbPost.Comments = append(dbPost.Comments, DBComment{
			User:      comment.User,
			Text:      comment.Text,
			CreatedAt: comment.CreatedAt,
		})

		updated, err := dbPost.MarshalBinary()
		if err != nil {
			return err
		}
		if err := b.Put(dbPost.Key(), updated); err != nil {
			return err
		}
		post = postFromDB(dbPost)
		return nil
	})
	return post, err
}
