package storage

import (
	"encoding"
	"encoding/binary"

	"github.com/vmihailenco/msgpack/v5"
)

type Storeable interface {
	Key() []byte
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

type DBUser struct {
	ID         string   `msgpack:"id"`
	Username   string   `msgpack:"username"`
	ProfilePic string   `msgpack:"profilePic"`
	Bio        string   `msgpack:"bio"`
	Followers  []string `msgpack:"followers"`
	Following  []string `msgpack:"following"`
	Saved      []string `msgpack:"saved"`
	CreatedAt  int64    `msgpack:"createdAt"`
}

func (u *DBUser) Key() []byte {
	return []byte(u.ID)
}

func (u *DBUser) MarshalBinary() (data []byte, err error) {
	type alias DBUser
	return msgpack.Marshal((*alias)(u))
}

func (u *DBUser) UnmarshalBinary(data []byte) error {
	type alias DBUser
	return msgpack.Unmarshal(data, (*alias)(u))
}

type DBMessage struct {
	Seq            int64  `msgpack:"seq"`
	ConversationID string `msgpack:"conversationId"`
	Sender         string `msgpack:"sender"`
	Text           string `msgpack:"text"`
	Read           bool   `msgpack:"read"`
	IsGroup        bool   `msgpack:"isGroup"`
	CreatedAt      int64  `msgpack:"createdAt"`
}

func (m *DBMessage) Key() []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(m.Seq))
	return key
}

func (m *DBMessage) MarshalBinary() (data []byte, err error) {
	type alias DBMessage
	return msgpack.Marshal((*alias)(m))
}

func (m *DBMessage) UnmarshalBinary(data []byte) error {
	type alias DBMessage
	return msgpack.Unmarshal(data, (*alias)(m))
}

type DBPost struct {
	ID        string      `msgpack:"id"`
	Author    string      `msgpack:"author"`
	Content   string      `msgpack:"content"`
	ImageURL  string      `msgpack:"imageUrl"`
	Hashtags  []string    `msgpack:"hashtags"`
	Location  string      `msgpack:"location"`
	Likes     []string    `msgpack:"likes"`
	Comments  []DBComment `msgpack:"comments"`
	CreatedAt int64       `msgpack:"createdAt"`
	UpdatedAt int64       `msgpack:"updatedAt"`
}

type DBComment struct {
	User      string `msgpack:"user"`
	Text      string `msgpack:"text"`
	CreatedAt int64  `msgpack:"createdAt"`
}

func (p *DBPost) Key() []byte {
	return []byte(p.ID)
}

func (p *DBPost) MarshalBinary() (data []byte, err error) {
	type alias DBPost
	return msgpack.Marshal((*alias)(p))
}

func (p *DBPost) UnmarshalBinary(data []byte) error {
	type alias DBPost
	return msgpack.Unmarshal(data, (*alias)(p))
}

type DBStory struct {
	ID        string `msgpack:"id"`
	UserID    string `msgpack:"userId"`
	ImageURL  string `msgpack:"imageUrl"`
	CreatedAt int64  `msgpack:"createdAt"`
}

func (s *DBStory) Key() []byte {
	return []byte(s.ID)
}

func (s *DBStory) MarshalBinary() (data []byte, err error) {
	type alias DBStory
	return msgpack.Marshal((*alias)(s))
}

func (s *DBStory) UnmarshalBinary(data []byte) error {
	type alias DBStory
	return msgpack.Unmarshal(data, (*alias)(s))
}

type DBNotification struct {
	ID        string `msgpack:"id"`
	Sender    string `msgpack:"sender"`
	Receiver  string `msgpack:"receiver"`
	Type      string `msgpack:"type"`
	Post      string `msgpack:"post"`
	Read      bool   `msgpack:"read"`
	CreatedAt int64  `msgpack:"createdAt"`
}

func (n *DBNotification) Key() []byte {
	return []byte(n.ID)
}

func (n *DBNotification) MarshalBinary() (data []byte, err error) {
	type alias DBNotification
	return msgpack.Marshal((*alias)(n))
}

func (n *DBNotification) UnmarshalBinary(data []byte) error {
	type alias DBNotification
	return msgpack.Unmarshal(data, (*alias)(n))
}

type DBSubscription struct {
	UserID   string `msgpack:"userId"`
	Endpoint string `msgpack:"endpoint"`
	P256dh   string `msgpack:"p256dh"`
	Auth     string `msgpack:"auth"`
}

func (s *DBSubscription) Key() []byte {
	return []byte(s.UserID)
}

func (s *DBSubscription) MarshalBinary() (data []byte, err error) {
	type alias DBSubscription
	return msgpack.Marshal((*alias)(s))
}

func (s *DBSubscription) UnmarshalBinary(data []byte) error {
	type alias DBSubscription
	return msgpack.Unmarshal(data, (*alias)(s))
}
