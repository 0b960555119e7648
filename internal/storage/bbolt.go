package storage

import (
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var (
	bucketProfiles = []byte("profiles")
)

// BboltStorage persists user profiles and device tokens so push
// reachability survives a server restart.
type BboltStorage struct {
	db *bbolt.DB
}

func NewBboltStorage(path string) (*BboltStorage, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketProfiles)
		return err
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

// UpsertProfile stores a new or updated profile. Empty token fields do
// not overwrite previously stored ones, mirroring the in-memory
// registry's merge semantics.
func (s *BboltStorage) UpsertProfile(profile DBProfile) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketProfiles)

		if existing := b.Get(profile.Key()); existing != nil {
			var stored DBProfile
			if err := stored.UnmarshalBinary(existing); err != nil {
				return fmt.Errorf("corrupt profile for %s: %w", profile.UserID, err)
			}
			if profile.Name == "" {
				profile.Name = stored.Name
			}
			if profile.FCMToken == "" {
				profile.FCMToken = stored.FCMToken
			}
			if profile.PlayerID == "" {
				profile.PlayerID = stored.PlayerID
			}
			if profile.VoIPToken == "" {
				profile.VoIPToken = stored.VoIPToken
			}
			if profile.LastSeen == 0 {
				profile.LastSeen = stored.LastSeen
			}
		}

		data, err := profile.MarshalBinary()
		if err != nil {
			return err
		}
		return b.Put(profile.Key(), data)
	})
}

// ListProfiles returns all stored profiles.
func (s *BboltStorage) ListProfiles() ([]DBProfile, error) {
	var profiles []DBProfile
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketProfiles)
		return b.ForEach(func(k, v []byte) error {
			var p DBProfile
			if err := p.UnmarshalBinary(v); err != nil {
				return err
			}
			profiles = append(profiles, p)
			return nil
		})
	})
	return profiles, err
}
