package swervemodule

import (
	"context"
	"time"

	"github.com/go-daq/canbus"
	"go.viam.com/rdk/logging"
	viamutils "go.viam.com/utils"
)

// Receiver reads frames from the bus. *canbus.Socket satisfies it.
type Receiver interface {
	Recv() (canbus.Frame, error)
}

// FeedbackHandler consumes feedback frames. *CAN satisfies it.
type FeedbackHandler interface {
	HandleFeedback(frame canbus.Frame) bool
}

const receiveRetryInterval = 10 * time.Millisecond

// ReceiveFeedback receives frames and hands each to the first handler that accepts it,
// until ctx is done. Closing the receiver unblocks a pending Recv.
func ReceiveFeedback(ctx context.Context, rx Receiver, logger logging.Logger, handlers ...FeedbackHandler) {
	for {
		if ctx.Err() != nil {
			return
		}

		frame, err := rx.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Errorw("CAN Rx error", "error", err)
			if !viamutils.SelectContextOrWait(ctx, receiveRetryInterval) {
				return
			}
			continue
		}

		for _, h := range handlers {
			if h.HandleFeedback(frame) {
				break
			}
		}
	}
}
