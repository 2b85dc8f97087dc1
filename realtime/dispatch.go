// Copyright 2026 The Huddle Authors
// SPDX-License-Identifier: Apache-2.0

package realtime

// dispatch logs a handled transition and invokes the matching
// callback. It runs on the goroutine that handled the event, with no
// manager lock held. Callback panics are not recovered.
func (m *Manager) dispatch(topic string, callbacks Callbacks, channel Channel, event StatusEvent, retries int) {
	logger := m.logger.With("topic", topic)

	switch event.Status {
	case StatusSubscribed:
		logger.Info("channel subscribed")
		if callbacks.OnSubscribe != nil {
			callbacks.OnSubscribe(channel)
		}

	case StatusClosed:
		logger.Info("channel closed, retrying", "retries", retries)
		if callbacks.OnClose != nil {
			callbacks.OnClose(channel)
		}

	case StatusTimedOut:
		logger.Warn("channel subscribe timed out, retrying", "retries", retries)
		if callbacks.OnTimeout != nil {
			callbacks.OnTimeout(channel)
		}

	case StatusChannelError:
		if IsTokenExpired(event.Err) {
			logger.Info("channel token expired, resubscribing now", "error", event.Err)
		} else {
			logger.Warn("channel error", "error", event.Err, "retries", retries)
		}
		if event.Err != nil && callbacks.OnError != nil {
			callbacks.OnError(channel, event.Err)
		}
	}
}
