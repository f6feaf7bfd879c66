package synch

// A Channel passes one message at a time between threads. Send returns
// only after a receiver has taken the message; Receive blocks until a
// message is available. The deposit and its consumption are both observed
// under the channel lock, so a sender can never be woken for a message a
// receiver has not actually taken.
type Channel struct {
	lock    *Lock
	canSend *Condition
	canRecv *Condition
	taken   *Condition

	buf    int
	hasMsg bool
	recvs  uint64
}

func NewChannel(name string) *Channel {
	c := &Channel{lock: NewLock(name)}
	c.canSend = NewCondition(c.lock)
	c.canRecv = NewCondition(c.lock)
	c.taken = NewCondition(c.lock)
	return c
}

func (c *Channel) Send(tid int, msg int) {
	c.lock.Acquire(tid)
	for c.hasMsg {
		c.canSend.Wait(tid)
	}
	c.buf = msg
	c.hasMsg = true
	want := c.recvs + 1
	c.canRecv.Signal()
	for c.recvs < want {
		c.taken.Wait(tid)
	}
	c.lock.Release(tid)
}

func (c *Channel) Receive(tid int) int {
	c.lock.Acquire(tid)
	for !c.hasMsg {
		c.canRecv.Wait(tid)
	}
	msg := c.buf
	c.hasMsg = false
	c.recvs++
	c.taken.Signal()
	c.canSend.Signal()
	c.lock.Release(tid)
	return msg
}
