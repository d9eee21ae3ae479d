package cluster

import (
	"io"
	"time"

	"github.com/go-aggregator/aggregator/internal/rpc"
	"github.com/go-aggregator/aggregator/logging"
)

// logServer implements rpc.LogServiceServer, printing every message a
// peer ships to it over the Log client stream. Grounded on the teacher's
// logServer (core/s_log.go, cluster/s_log.go): drain the stream to EOF,
// counting messages, then ack with the count and the time the stream was
// closed.
type logServer struct{}

func (s *logServer) Log(stream rpc.LogService_LogServer) error {
	var count int32
	for {
		message, err := stream.Recv()
		if err == io.EOF {
			return stream.SendAndClose(&rpc.LogAck{Time: time.Now().Unix(), Count: count})
		} else if err != nil {
			return err
		}
		count++
		logging.Log(int(message.Level), message.Source, message.Message)
	}
}
