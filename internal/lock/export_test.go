package lock

// Len reports how many keys currently have a holder or a waiter.
func (l *LocalLocker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
