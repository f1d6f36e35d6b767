package websocket

import (
	"fmt"
	"reflect"
	"regexp"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/zishang520/engine.io/v2/types"
	socketio "github.com/zishang520/socket.io/v2/socket"

	"storecanvas/core"
)

type ackInvoker func(err error, payload map[string]any)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// ExportNotifier relays export batch progress to socket.io clients that
// joined the room of the exported design. Events are only emitted to rooms
// with at least one watcher.
type ExportNotifier struct {
	srv     *socketio.Server
	emitter roomEmitter

	mu       sync.RWMutex
	watchers map[string]int
}

// roomEmitter sends one event to every socket in a design's room.
type roomEmitter interface {
	EmitTo(designID, event string, payload map[string]any) error
}

type serverEmitter struct {
	srv *socketio.Server
}

func (e serverEmitter) EmitTo(designID, event string, payload map[string]any) error {
	return e.srv.To(socketio.Room(designID)).Emit(event, payload)
}

// SetupSocketIO creates the socket.io server and the notifier bound to it.
// Clients send "join-room" with a design id to receive "export-started",
// "export-progress" and "export-finished" for that design.
func SetupSocketIO(allowedOrigins ...string) (*socketio.Server, *ExportNotifier) {
	opts := socketio.DefaultServerOptions()
	opts.SetPath("/socket.io")
	opts.SetAllowEIO3(true)
	origins := []any{regexp.MustCompile(`^https?://(localhost|127\.0\.0\.1|\[::1\])(:\d+)?$`)}
	for _, o := range allowedOrigins {
		origins = append(origins, o)
	}
	opts.SetCors(&types.Cors{
		Origin:      origins,
		Credentials: true,
	})
	srv := socketio.NewServer(nil, opts)
	n := &ExportNotifier{srv: srv, emitter: serverEmitter{srv}, watchers: make(map[string]int)}

	//nolint:errcheck // Socket.IO event handlers do not return useful errors
	srv.On("connection", func(clients ...any) {
		socket, ok := clients[0].(*socketio.Socket)
		if !ok {
			return
		}
		n.attach(socket)
	})

	return srv, n
}

func (n *ExportNotifier) attach(socket *socketio.Socket) {
	me := socket.Id()

	//nolint:errcheck // Socket.IO event handlers do not return useful errors
	socket.On("join-room", func(datas ...any) {
		ack, args := extractAck(datas)
		designID, err := roomArg(args)
		if err != nil {
			respondWithAck(socket, ack, "join-room-ack", map[string]any{
				"status": "error",
				"error":  err.Error(),
			}, err)
			return
		}

		room := socketio.Room(designID)
		socket.Join(room)
		logrus.WithFields(logrus.Fields{"socket": me, "design_id": designID}).Debug("Socket joined export room")

		n.srv.In(room).FetchSockets()(func(users []*socketio.RemoteSocket, fetchErr error) {
			if fetchErr != nil {
				respondWithAck(socket, ack, "join-room-ack", map[string]any{
					"status": "error",
					"error":  fetchErr.Error(),
				}, fetchErr)
				return
			}
			n.setWatchers(designID, len(users))
			respondWithAck(socket, ack, "join-room-ack", map[string]any{
				"status":   "ok",
				"designId": designID,
				"watchers": len(users),
			}, nil)
		})
	})

	socket.On("disconnecting", func(datas ...any) {
		for _, current := range socket.Rooms().Keys() {
			designID := string(current)
			if designID == string(me) {
				continue
			}
			n.srv.In(current).FetchSockets()(func(users []*socketio.RemoteSocket, _ error) {
				others := 0
				for _, u := range users {
					if u.Id() != me {
						others++
					}
				}
				n.setWatchers(designID, others)
			})
		}
	})

	socket.On("disconnect", func(datas ...any) {
		socket.RemoveAllListeners("")
	})
}

func (n *ExportNotifier) setWatchers(designID string, count int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if count <= 0 {
		delete(n.watchers, designID)
		return
	}
	n.watchers[designID] = count
}

// Watchers returns the number of sockets following each design.
func (n *ExportNotifier) Watchers() map[string]int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make(map[string]int, len(n.watchers))
	for k, v := range n.watchers {
		out[k] = v
	}
	return out
}

func (n *ExportNotifier) watched(designID string) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.watchers[designID] > 0
}

func (n *ExportNotifier) emit(designID, event string, payload map[string]any) {
	if !n.watched(designID) {
		return
	}
	if err := n.emitter.EmitTo(designID, event, payload); err != nil {
		logrus.WithFields(logrus.Fields{"design_id": designID, "event": event}).WithError(err).Warn("Failed to emit export event")
	}
}

func (n *ExportNotifier) ExportStarted(designID string, presetCodes []string) {
	n.emit(designID, "export-started", startedPayload(designID, presetCodes))
}

func (n *ExportNotifier) ExportProgress(event core.ExportEvent) {
	n.emit(event.DesignID, "export-progress", progressPayload(event))
}

func (n *ExportNotifier) ExportFinished(designID string, succeeded, failed int) {
	n.emit(designID, "export-finished", finishedPayload(designID, succeeded, failed))
}

func startedPayload(designID string, presetCodes []string) map[string]any {
	codes := make([]any, len(presetCodes))
	for i, c := range presetCodes {
		codes[i] = c
	}
	return map[string]any{
		"designId":        designID,
		"sizePresetCodes": codes,
	}
}

func progressPayload(e core.ExportEvent) map[string]any {
	p := map[string]any{
		"designId":   e.DesignID,
		"index":      e.Index,
		"total":      e.Total,
		"presetCode": e.PresetCode,
	}
	if e.Export != nil {
		p["status"] = "ok"
		p["export"] = map[string]any{
			"id":           e.Export.ID,
			"sizePresetId": e.Export.SizePresetID,
			"format":       string(e.Export.Format),
			"width":        e.Export.Width,
			"height":       e.Export.Height,
			"outputUrl":    e.Export.OutputURL,
		}
	} else {
		p["status"] = "error"
		p["reason"] = e.Reason
	}
	return p
}

func finishedPayload(designID string, succeeded, failed int) map[string]any {
	return map[string]any{
		"designId":  designID,
		"succeeded": succeeded,
		"failed":    failed,
	}
}

func roomArg(args []any) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("design id is required")
	}
	designID, ok := args[0].(string)
	if !ok || designID == "" {
		return "", fmt.Errorf("invalid design id")
	}
	return designID, nil
}

func extractAck(datas []any) (ack ackInvoker, args []any) {
	if len(datas) == 0 {
		return nil, datas
	}
	ack = wrapAck(datas[len(datas)-1])
	if ack == nil {
		return nil, datas
	}
	return ack, datas[:len(datas)-1]
}

// wrapAck adapts a client acknowledgement callback of any func signature.
// One-argument callbacks receive the error or the payload. Otherwise an
// error-typed parameter receives the error and the first other parameter
// the payload, falling back to (err, payload) by position.
func wrapAck(candidate any) ackInvoker {
	if candidate == nil {
		return nil
	}
	value := reflect.ValueOf(candidate)
	if value.Kind() != reflect.Func {
		return nil
	}

	typ := value.Type()
	errIndex, payloadIndex := 0, 1
	for i := 0; i < typ.NumIn(); i++ {
		if typ.In(i) == errorType {
			errIndex, payloadIndex = i, 0
			if i == 0 {
				payloadIndex = 1
			}
			break
		}
	}

	return func(err error, payload map[string]any) {
		args := make([]reflect.Value, typ.NumIn())
		for i := range args {
			var v any
			switch {
			case typ.NumIn() == 1 && err != nil:
				v = err
			case typ.NumIn() == 1:
				v = payload
			case i == errIndex && err != nil:
				v = err
			case i == payloadIndex:
				v = payload
			}
			args[i] = coerce(v, typ.In(i))
		}
		value.Call(args)
	}
}

func coerce(value any, target reflect.Type) reflect.Value {
	if value == nil {
		return reflect.Zero(target)
	}
	rv := reflect.ValueOf(value)
	switch {
	case rv.Type().AssignableTo(target):
		return rv
	case rv.Type().ConvertibleTo(target):
		return rv.Convert(target)
	case target.Kind() == reflect.Slice && target.Elem().Kind() == reflect.Interface:
		// func([]any, error) style callbacks
		out := reflect.MakeSlice(target, 1, 1)
		out.Index(0).Set(rv)
		return out
	case target.Kind() == reflect.String:
		return reflect.ValueOf(fmt.Sprint(value)).Convert(target)
	}
	return reflect.Zero(target)
}

func respondWithAck(socket *socketio.Socket, ack ackInvoker, event string, payload map[string]any, ackErr error) {
	if ack != nil {
		ack(ackErr, payload)
	}
	if event != "" && payload != nil {
		_ = socket.Emit(event, payload)
	}
}
