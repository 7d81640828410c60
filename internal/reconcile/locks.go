// Package reconcile — locks.go: сериализация операций по одному аккаунту.
// Последовательность «удалённый вызов → списание» некоммутативна, поэтому
// два тика по одному аккаунту не должны идти параллельно. Административные
// операции проходят через эти же замки.
package reconcile

import "sync"

// KeyedLocks — карта мьютексов по user ID.
type KeyedLocks struct {
	mu    sync.Mutex
	locks map[int64]*entryLock
}

type entryLock struct {
	mu   sync.Mutex
	refs int
}

func NewKeyedLocks() *KeyedLocks {
	return &KeyedLocks{locks: make(map[int64]*entryLock)}
}

// Acquire блокирует аккаунт и возвращает функцию разблокировки.
// Счётчик ссылок не даёт карте расти бесконечно: запись удаляется,
// когда её никто не ждёт.
func (k *KeyedLocks) Acquire(userID int64) func() {
	k.mu.Lock()
	e, ok := k.locks[userID]
	if !ok {
		e = &entryLock{}
		k.locks[userID] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()

		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, userID)
		}
		k.mu.Unlock()
	}
}
