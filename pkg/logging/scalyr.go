package logging

import (
	"encoding/json"
	"time"

	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

var bufferPool = buffer.NewPool()

// ScalyrEncoder is a custom Zap encoder that outputs Scalyr-compatible JSON format.
// Fields attached with logger.With are kept in the embedded map encoder and
// merged into every entry.
type ScalyrEncoder struct {
	*zapcore.MapObjectEncoder
	config zapcore.EncoderConfig
}

// NewScalyrEncoder creates a new Scalyr-compatible encoder
func NewScalyrEncoder(config zapcore.EncoderConfig) zapcore.Encoder {
	return &ScalyrEncoder{
		MapObjectEncoder: zapcore.NewMapObjectEncoder(),
		config:           config,
	}
}

// EncodeEntry encodes a log entry in Scalyr-compatible format
func (e *ScalyrEncoder) EncodeEntry(entry zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	logObj := make(map[string]interface{}, len(e.Fields)+len(fields)+8)
	for k, v := range e.Fields {
		logObj[k] = v
	}

	entryFields := zapcore.NewMapObjectEncoder()
	for _, field := range fields {
		field.AddTo(entryFields)
	}
	for k, v := range entryFields.Fields {
		if d, ok := v.(time.Duration); ok {
			v = d.String()
		}
		logObj[k] = v
	}

	logObj["timestamp"] = entry.Time.UTC().Format(time.RFC3339Nano)
	logObj["level"] = entry.Level.String()
	logObj["message"] = entry.Message
	if entry.LoggerName != "" {
		logObj["logger"] = entry.LoggerName
	}
	if entry.Caller.Defined {
		logObj["file"] = entry.Caller.File
		logObj["line"] = entry.Caller.Line
		logObj["function"] = entry.Caller.Function
	}
	if entry.Stack != "" {
		logObj["stack"] = entry.Stack
	}

	buf := bufferPool.Get()
	encoder := json.NewEncoder(buf)
	encoder.SetEscapeHTML(false)
	// json.Encoder terminates each value with a newline, which doubles as the
	// line ending zap expects.
	if err := encoder.Encode(logObj); err != nil {
		buf.Free()
		return nil, err
	}
	return buf, nil
}

// Clone creates a copy of the encoder
func (e *ScalyrEncoder) Clone() zapcore.Encoder {
	clone := zapcore.NewMapObjectEncoder()
	for k, v := range e.Fields {
		clone.Fields[k] = v
	}
	return &ScalyrEncoder{
		MapObjectEncoder: clone,
		config:           e.config,
	}
}
