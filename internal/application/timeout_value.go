package application

import "time"

// TimeoutValue remembers a fetched value and the outstanding request for it.
// lastSend is cleared whenever a response arrives, successful or not.
type TimeoutValue[T any] struct {
	value     *T
	fetchedAt time.Time
	lastSend  *time.Time
}

// ShouldRequest reports whether a new request should be sent at now. A nil
// cacheFor keeps a fetched value forever.
func (v *TimeoutValue[T]) ShouldRequest(now time.Time, cacheFor *time.Duration, timeout time.Duration) bool {
	if v.value != nil {
		if cacheFor == nil || v.fetchedAt.Add(*cacheFor).After(now) {
			return false
		}
	}

	if v.lastSend == nil {
		return true
	}
	return v.lastSend.Add(timeout).Before(now)
}

func (v *TimeoutValue[T]) Requested(now time.Time) {
	v.lastSend = &now
}

// Event ingests a response. The previous value is kept when err is set.
func (v *TimeoutValue[T]) Event(now time.Time, value T, err error) error {
	v.lastSend = nil
	if err != nil {
		return err
	}

	v.value = &value
	v.fetchedAt = now
	return nil
}

func (v *TimeoutValue[T]) Get() (T, bool) {
	if v.value == nil {
		var zero T
		return zero, false
	}
	return *v.value, true
}

func (v *TimeoutValue[T]) FetchedAt() time.Time {
	return v.fetchedAt
}

func (v *TimeoutValue[T]) Reset() {
	*v = TimeoutValue[T]{}
}

func ttl(d time.Duration) *time.Duration {
	return &d
}
