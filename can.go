package main

import (
	"github.com/go-daq/canbus"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/ky28059/GRT2023/swervemodule"
)

// canTx is the command side of the bus.
type canTx interface {
	swervemodule.Bus
	Close() error
}

// canRx is the feedback side of the bus. Closing it unblocks a pending Recv.
type canRx interface {
	swervemodule.Receiver
	Close() error
}

// openCAN binds a send socket and a filtered receive socket on channel.
func openCAN(channel string, filters []unix.CanFilter) (*canbus.Socket, *canbus.Socket, error) {
	socketSend, err := canbus.New()
	if err != nil {
		return nil, nil, errors.Wrap(err, "opening CAN send socket")
	}
	if err := socketSend.Bind(channel); err != nil {
		socketSend.Close()
		return nil, nil, errors.Wrapf(err, "binding CAN send socket to %s", channel)
	}

	socketRecv, err := canbus.New()
	if err != nil {
		socketSend.Close()
		return nil, nil, errors.Wrap(err, "opening CAN receive socket")
	}
	if err := socketRecv.SetFilters(filters); err != nil {
		socketSend.Close()
		socketRecv.Close()
		return nil, nil, errors.Wrap(err, "setting CAN receive filters")
	}
	if err := socketRecv.Bind(channel); err != nil {
		socketSend.Close()
		socketRecv.Close()
		return nil, nil, errors.Wrapf(err, "binding CAN receive socket to %s", channel)
	}
	return socketSend, socketRecv, nil
}

// feedbackFilters accepts the feedback IDs of every configured CAN module.
func feedbackFilters(cfg *Config) []unix.CanFilter {
	var ids []uint32
	for _, m := range cfg.Modules {
		if m.Type == moduleTypeCAN {
			ids = append(ids, m.DriveCANID, m.SteerCANID)
		}
	}
	return swervemodule.FeedbackFilters(ids...)
}
