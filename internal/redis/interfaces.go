package redis

import "splitpay/internal/repository"

// Ensure concrete types implement interfaces.
var (
	_ repository.ProgressStore = (*ProgressStore)(nil)
	_ repository.SessionLocker = (*LockStore)(nil)
)
