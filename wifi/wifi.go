//go:build tinygo

// Package wifi joins a network with the CYW43439 radio of a Pico W and dials
// TCP connections over the lneto stack, for the MQTT client.
package wifi

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"net/netip"
	"time"

	"github.com/harveysanders/picolcd/mqtt"
	"github.com/soypat/cyw43439"
	"github.com/soypat/lneto/tcp"
	"github.com/soypat/lneto/x/xnet"
)

const (
	mtu      = cyw43439.MTU
	pollTime = 5 * time.Millisecond
)

var (
	ssid string
	pass string
)

// SSID returns the network name set with -ldflags "-X .../wifi.ssid=...".
func SSID() string { return ssid }

// Password returns the passphrase set with -ldflags.
func Password() string { return pass }

type Config struct {
	Hostname string
	// RequestedAddr is asked for in DHCP and used as a static address if
	// DHCP does not complete.
	RequestedAddr netip.Addr
	// TCPBufSize sizes each receive and transmit buffer. Defaults to 2030.
	TCPBufSize int
	Logger     *slog.Logger
}

// Stack is the radio plus the network stack running over it.
type Stack struct {
	s       xnet.StackAsync
	dev     *cyw43439.Device
	log     *slog.Logger
	sendbuf []byte
	bufSize int
}

// Join initializes the radio, joins ssid (retrying until it succeeds) and
// configures the address with DHCP.
func Join(ssid, pass string, cfg Config) (*Stack, error) {
	if cfg.Hostname == "" {
		return nil, errors.New("wifi: empty hostname")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
			Level: slog.Level(127),
		}))
	}
	if cfg.TCPBufSize <= 0 {
		cfg.TCPBufSize = 2030 // MTU - ethhdr - iphdr - tcphdr
	}

	start := time.Now()
	dev := cyw43439.NewPicoWDevice()
	dev.SetLogger(logger)
	if err := dev.Init(cyw43439.DefaultWifiConfig()); err != nil {
		return nil, errors.New("wifi init failed:" + err.Error())
	}
	logger.Info("wifi:init", slog.Duration("duration", time.Since(start)))

	for {
		err := dev.JoinWPA2(ssid, pass)
		if err == nil {
			break
		}
		logger.Error("wifi:join-failed", slog.String("ssid", ssid), slog.String("err", err.Error()))
		time.Sleep(5 * time.Second)
	}
	mac, err := dev.HardwareAddr6()
	if err != nil {
		return nil, errors.New("get hardware address:" + err.Error())
	}
	logger.Info("wifi:joined", slog.String("mac", net.HardwareAddr(mac[:]).String()))

	s := &Stack{dev: dev, log: logger, sendbuf: make([]byte, mtu), bufSize: cfg.TCPBufSize}
	err = s.s.Reset(xnet.StackConfig{
		Hostname:        cfg.Hostname,
		MaxTCPConns:     1,
		RandSeed:        time.Since(start).Nanoseconds(),
		HardwareAddress: mac,
		MTU:             mtu,
	})
	if err != nil {
		return nil, errors.New("stack reset:" + err.Error())
	}
	dev.RecvEthHandle(func(pkt []byte) error {
		return s.s.Demux(pkt, 0)
	})

	go s.loop()
	if err := s.dhcp(cfg.RequestedAddr); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Stack) dhcp(requested netip.Addr) error {
	if !requested.IsValid() {
		requested = netip.AddrFrom4([4]byte{})
	} else if !requested.Is4() {
		return errors.New("wifi: only dhcpv4 supported")
	}
	rstack := s.s.StackRetrying(50 * time.Millisecond)

	s.log.Info("dhcp:starting")
	results, err := rstack.DoDHCPv4(requested.As4(), 3*time.Second, 3)
	if err != nil {
		if !requested.IsUnspecified() {
			s.log.Info("dhcp:static-fallback", slog.String("ip", requested.String()))
			s.s.SetIPAddr(requested)
			return nil
		}
		return errors.New("dhcp failed:" + err.Error())
	}
	if err := s.s.AssimilateDHCPResults(results); err != nil {
		return errors.New("assimilate dhcp:" + err.Error())
	}
	gatewayHW, err := rstack.DoResolveHardwareAddress6(results.Router, 500*time.Millisecond, 4)
	if err != nil {
		return errors.New("resolve gateway:" + err.Error())
	}
	s.s.SetGateway6(gatewayHW)
	s.log.Info("dhcp:done",
		slog.String("ip", results.AssignedAddr.String()),
		slog.String("router", results.Router.String()),
		slog.Uint64("lease_sec", uint64(results.TLease)),
	)
	return nil
}

// loop moves packets between the radio and the stack.
func (s *Stack) loop() {
	for {
		send, recv, _ := s.recvAndSend()
		if send == 0 && recv == 0 {
			time.Sleep(pollTime)
		}
	}
}

func (s *Stack) recvAndSend() (send, recv int, err error) {
	gotPacket, errRecv := s.dev.PollOne()
	if gotPacket {
		recv = 1
	}
	if errRecv != nil {
		s.log.Error("wifi:poll", slog.String("err", errRecv.Error()))
	}
	send, err = s.s.Encapsulate(s.sendbuf, -1, 0)
	if err != nil {
		s.log.Error("wifi:encapsulate", slog.Int("plen", send), slog.String("err", err.Error()))
	} else {
		err = errRecv
	}
	if send == 0 {
		return send, recv, err
	}
	if err = s.dev.SendEth(s.sendbuf[:send]); err != nil {
		s.log.Error("wifi:send", slog.Int("plen", send), slog.String("err", err.Error()))
	}
	return send, recv, err
}

// Addr is the address assigned to the stack.
func (s *Stack) Addr() netip.Addr { return s.s.Addr() }

// Dialer returns a mqtt.DialFunc connecting to addr ("host:port"), resolving
// host through DNS when it is not an IP address. The stack holds one TCP
// connection; each dial replaces the previous one.
func (s *Stack) Dialer(addr string) (mqtt.DialFunc, error) {
	host, portStr, err := splitHostPort(addr)
	if err != nil {
		return nil, errors.New("parsing host:port from " + addr + ": " + err.Error())
	}
	port := parsePort(portStr)
	if port == 0 {
		return nil, errors.New("bad port in " + addr)
	}

	c := &conn{log: s.log}
	err = c.Configure(tcp.ConnConfig{
		RxBuf:             make([]byte, s.bufSize),
		TxBuf:             make([]byte, s.bufSize),
		TxPacketQueueSize: 3,
	})
	if err != nil {
		return nil, errors.New("tcp configure:" + err.Error())
	}

	rstack := s.s.StackRetrying(pollTime)
	return func() (mqtt.Conn, error) {
		ip, err := netip.ParseAddr(host)
		if err != nil {
			s.log.Info("dns:resolving", slog.String("host", host))
			addrs, err := rstack.DoLookupIP(host, 5*time.Second, 3)
			if err != nil {
				return nil, errors.New("dns lookup for " + host + ": " + err.Error())
			}
			if len(addrs) == 0 {
				return nil, errors.New("dns lookup for " + host + ": no addresses returned")
			}
			ip = addrs[0]
		}
		c.shutdown()
		localPort := uint16(s.s.Prand32()>>17) + 1024
		s.log.Info("socket:dialing", slog.String("addr", ip.String()), slog.Uint64("localPort", uint64(localPort)))
		if err := rstack.DoDialTCP(&c.Conn, localPort, netip.AddrPortFrom(ip, port), 10*time.Second, 3); err != nil {
			c.shutdown()
			return nil, err
		}
		return c, nil
	}, nil
}

// conn closes gracefully and aborts when the peer does not answer.
type conn struct {
	tcp.Conn
	log *slog.Logger
}

func (c *conn) Close() error {
	c.shutdown()
	return nil
}

func (c *conn) shutdown() {
	if c.State().IsClosed() {
		return
	}
	c.log.Info("tcpconn:closing")
	c.Conn.Close()
	for i := 0; i < 50 && !c.State().IsClosed(); i++ {
		time.Sleep(100 * time.Millisecond)
	}
	c.Abort()
}
