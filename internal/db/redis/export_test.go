package redis

import "github.com/redis/rueidis"

func newStoreForTest(c rueidis.Client) *Store {
	return &Store{client: c}
}
