package server

import (
	"net"
	"time"
)

const keepAlivePeriod = 3 * time.Minute

// keepAliveListener enables TCP keep-alives on accepted connections so dead peers are eventually dropped.
type keepAliveListener struct {
	*net.TCPListener
}

func (ln *keepAliveListener) Accept() (net.Conn, error) {
	tc, err := ln.AcceptTCP()
	if err != nil {
		return nil, err
	}

	tc.SetKeepAlive(true)
	tc.SetKeepAlivePeriod(keepAlivePeriod)
	return tc, nil
}
