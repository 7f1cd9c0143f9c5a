package netio

// Conn is a single client connection's runtime state: its file
// descriptor, its two FIFO buffers, and the readiness intents that
// project what the event loop should wait for next.
type Conn struct {
	FD int

	Incoming Buffer
	Outgoing Buffer

	WantRead  bool
	WantWrite bool
	WantClose bool

	RemoteAddr string
}

// NewConn returns a Conn ready to read, for a freshly accepted fd.
func NewConn(fd int, remoteAddr string) *Conn {
	return &Conn{FD: fd, WantRead: true, RemoteAddr: remoteAddr}
}

// QueueResponse appends a framed response to Outgoing and flips the
// connection's intents to write, per the per-connection read step.
func (c *Conn) QueueResponse(frame []byte) {
	c.Outgoing.Append(frame)
	c.WantWrite = true
}
