package storage

import (
	"encoding"

	"github.com/vmihailenco/msgpack/v5"
)

type Storeable interface {
	Key() []byte
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

// DBProfile is the persisted form of a user profile: identity plus the
// push delivery addresses registered for the user's devices. Live
// connection state is deliberately not stored, it is rebuilt when
// clients reconnect.
type DBProfile struct {
	UserID    string `msgpack:"userId"`
	Name      string `msgpack:"name"`
	FCMToken  string `msgpack:"fcmToken"`
	PlayerID  string `msgpack:"playerId"`
	VoIPToken string `msgpack:"voipToken"`
	LastSeen  int64  `msgpack:"lastSeen"`
}

func (p *DBProfile) Key() []byte {
	return []byte(p.UserID)
}

func (p *DBProfile) MarshalBinary() (data []byte, err error) {
	type alias DBProfile
	return msgpack.Marshal((*alias)(p))
}

func (p *DBProfile) UnmarshalBinary(data []byte) error {
	type alias DBProfile
	return msgpack.Unmarshal(data, (*alias)(p))
}
