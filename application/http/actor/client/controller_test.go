package client

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/suite"

	"syncnet/application/http/engine"
	"syncnet/application/http/engine/enginetest"
	"syncnet/application/http/httperr"
	"syncnet/application/http/semantic"
	"syncnet/lib/pool"
)

type ControllerTestSuite struct {
	suite.Suite

	engine     *enginetest.Engine
	exec       *pool.Executor
	terminated atomic.Int32
	lastErr    atomic.Pointer[error]
}

func TestControllerTestSuite(t *testing.T) {
	suite.Run(t, new(ControllerTestSuite))
}

func (s *ControllerTestSuite) SetupTest() {
	s.engine = enginetest.Static(enginetest.Hang())
	s.exec = pool.NewExecutor(0)
	s.terminated.Store(0)
	s.lastErr.Store(nil)
}

func (s *ControllerTestSuite) newController() *controller {
	request, err := semantic.Get("http://example.com", nil)
	s.Require().NoError(err)

	return newController(
		request, s.engine, DefaultRedirect{Follow: true, FollowScheme: true},
		slog.New(slog.DiscardHandler), clock.New(), 10*time.Millisecond,
		func(err error) {
			s.terminated.Add(1)
			if err != nil {
				s.lastErr.Store(&err)
			}
		},
	)
}

func (s *ControllerTestSuite) TestQueuedOnlyAcceptsSentRequest() {
	c := s.newController()

	c.writeRequest()
	c.responseReady(&engine.ResponseInfo{StatusCode: 200})
	c.readResponse(3)

	s.Equal(stateQueued, c.currentState())
	s.False(c.connectGate.Value())
	s.False(c.responseGate.Value())
	s.False(c.readGate.Value())

	s.Require().NoError(c.setupSession(s.exec))
	s.Require().NoError(c.startConnection())
	s.Equal(stateConnecting, c.currentState())

	c.writeRequest()
	s.Equal(stateWriting, c.currentState())
	s.True(c.connectGate.Value())
	s.False(c.writeGate.Value())

	c.responseReady(&engine.ResponseInfo{StatusCode: 200})
	s.Equal(stateReading, c.currentState())

	// Never goes back.
	c.writeRequest()
	s.Equal(stateReading, c.currentState())

	c.closeConnection()
	s.Eventually(func() bool { return s.terminated.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func (s *ControllerTestSuite) TestStartWithoutSetup() {
	c := s.newController()
	s.ErrorIs(c.startConnection(), httperr.ErrIllegalState)
}

func (s *ControllerTestSuite) TestTerminalReleasesEveryWaiter() {
	c := s.newController()
	s.Require().NoError(c.setupSession(s.exec))
	s.Require().NoError(c.startConnection())

	boom := httperr.New(httperr.Protocol, "boom")
	results := make(chan error, 2)

	go func() {
		_, err := c.awaitResponse(context.Background(), 0)
		results <- err
	}()
	go func() {
		_, err := c.awaitChunk(context.Background(), make([]byte, 4), 0)
		results <- err
	}()

	time.Sleep(20 * time.Millisecond)
	c.terminate(stateError, boom)
	c.terminate(stateSuccess, nil)

	for range 2 {
		select {
		case err := <-results:
			s.ErrorIs(err, boom)
		case <-time.After(time.Second):
			s.FailNow("waiter still blocked after terminal state")
		}
	}

	s.Equal(stateError, c.currentState())
	s.EqualValues(1, s.terminated.Load())
	for _, g := range []interface{ Value() bool }{c.connectGate, c.writeGate, c.responseGate, c.readGate} {
		s.True(g.Value())
	}
}

func (s *ControllerTestSuite) TestCancelStoresCanceledError() {
	c := s.newController()
	s.Require().NoError(c.setupSession(s.exec))
	s.Require().NoError(c.startConnection())

	c.closeConnection()
	c.closeConnection()

	err := c.awaitConnection(context.Background(), time.Second)
	s.ErrorIs(err, httperr.ErrCanceled)
	s.Eventually(func() bool { return s.terminated.Load() == 1 }, time.Second, 5*time.Millisecond)
	s.Equal(1, s.engine.Canceled())
}

func (s *ControllerTestSuite) TestCloseWithErrorKeepsError() {
	c := s.newController()
	s.Require().NoError(c.setupSession(s.exec))
	s.Require().NoError(c.startConnection())

	misuse := errors.New("misuse")
	c.closeWithError(misuse)

	err := c.awaitConnection(context.Background(), time.Second)
	s.ErrorIs(err, misuse)
	s.Eventually(func() bool {
		stored := s.lastErr.Load()
		return stored != nil && errors.Is(*stored, misuse)
	}, time.Second, 5*time.Millisecond)
}

func (s *ControllerTestSuite) TestConnectionTimesOut() {
	c := s.newController()
	s.Require().NoError(c.setupSession(s.exec))
	s.Require().NoError(c.startConnection())

	err := c.awaitConnection(context.Background(), 70*time.Millisecond)
	s.ErrorIs(err, httperr.ErrTimeout)
	s.Equal(stateConnecting, c.currentState())

	c.closeConnection()
	s.Eventually(func() bool { return s.terminated.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func (s *ControllerTestSuite) TestConnectedOnLastStep() {
	c := s.newController()
	s.Require().NoError(c.setupSession(s.exec))
	s.Require().NoError(c.startConnection())

	// 10+20 ms steps; the write event lands inside the second one.
	time.AfterFunc(15*time.Millisecond, c.writeRequest)

	s.NoError(c.awaitConnection(context.Background(), 30*time.Millisecond))

	c.closeConnection()
	s.Eventually(func() bool { return s.terminated.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func (s *ControllerTestSuite) TestResponseWithoutInfoIsIllegal() {
	c := s.newController()
	s.Require().NoError(c.setupSession(s.exec))
	s.Require().NoError(c.startConnection())

	c.terminate(stateSuccess, nil)

	_, err := c.awaitResponse(context.Background(), 0)
	s.ErrorIs(err, httperr.ErrIllegalState)
}

func TestFromEngineError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want *httperr.Error
	}{
		{"dns", &engine.NetworkError{Code: engine.ErrorHostnameNotResolved}, httperr.ErrNameResolution},
		{"timeout", &engine.NetworkError{Code: engine.ErrorConnectionTimedOut}, httperr.ErrTimeout},
		{"refused", &engine.NetworkError{Code: engine.ErrorConnectionRefused}, httperr.ErrConnection},
		{"protocol", &engine.NetworkError{Code: engine.ErrorProtocolFailed}, httperr.ErrProtocol},
		{"offline", &engine.NetworkError{Code: engine.ErrorInternetDisconnected}, httperr.ErrNoNetwork},
		{"other", &engine.NetworkError{Code: engine.ErrorOther}, httperr.ErrIO},
		{"callback", &engine.CallbackError{Cause: httperr.New(httperr.Redirect, "no")}, httperr.ErrRedirect},
		{"plain", errors.New("x"), httperr.ErrIO},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := fromEngineError(c.err); !errors.Is(got, c.want) {
				t.Errorf("fromEngineError(%v) = %v, want kind %v", c.err, got, c.want.Kind)
			}
		})
	}
}
