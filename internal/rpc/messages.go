package rpc

import "github.com/theblitlabs/parity-ml/internal/transfer"

// AckOK is the message every successful transfer call replies with.
const AckOK = "OK"

type PrimeRequest struct {
	Filename string           `json:"filename"`
	Purpose  transfer.Purpose `json:"purpose"`
}

type SendRequest struct {
	SessionID string `json:"session_id"`
	Filename  string `json:"filename"`
	Content   []byte `json:"content"`
	Digest    []byte `json:"digest"`
}

type FinishRequest struct {
	SessionID string `json:"session_id"`
	Filename  string `json:"filename"`
	MAC       []byte `json:"mac"`
}

type Ack struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

func (a *Ack) OK() bool {
	return a != nil && a.Message == AckOK
}

type TrainingRequest struct {
	Flag bool `json:"flag"`
}

type TrainingReply struct {
	Message  string  `json:"message"`
	Accuracy float64 `json:"accuracy"`
}

type PredictionRequest struct {
	Flag bool `json:"flag"`
}

// PredictionReply carries the predicted labels as a JSON array.
type PredictionReply struct {
	Message    string `json:"message"`
	Prediction string `json:"prediction"`
}
