package errors

import (
	"encoding/json"
	errs "errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Code is the type representing a namespace error code.
type Code[MT any] struct {
	Code     uint16
	Name     string
	GrpcCode grpccodes.Code
}

// New creates a new error with the given code and the message
func (c Code[MT]) New(msg string, args ...any) TypedError[MT] {
	return &ErrorImpl[MT]{
		code:  c,
		cause: fmt.Errorf(msg, args...),
	}
}

// Wrap creates a new Error with the given code and the cause error
func (c Code[MT]) Wrap(cause error) TypedError[MT] {
	return &ErrorImpl[MT]{
		code:  c,
		cause: cause,
	}
}

func (c Code[MT]) String() string {
	return fmt.Sprintf("%s (%d)", c.Name, c.Code)
}

// Is reports whether err carries this code.
func (c Code[MT]) Is(err error) bool {
	var typed Error
	if !errs.As(err, &typed) {
		return false
	}
	return typed.Code() == c.Code
}

type Error interface {
	error
	Log() *log.Entry
	Code() uint16
	CodeName() string
	GrpcCode() grpccodes.Code
	Metadata() map[string]string
}

type TypedError[MT any] interface {
	Error
	WithMetadata(MT) TypedError[MT]
}

// ErrorImpl is the default concrete implementation of TypedError.
type ErrorImpl[MT any] struct {
	code     Code[MT]
	cause    error
	metadata MT
}

func (e *ErrorImpl[MT]) Log() *log.Entry {
	return log.WithField("name", e.code.Name).
		WithField("code", e.code.Code).
		WithField("metadata", e.metadata)
}

func (e *ErrorImpl[MT]) Metadata() map[string]string {
	// convert any metadata to map[string]string
	metadata := make(map[string]string)
	buf, err := json.Marshal(e.metadata)
	if err == nil {
		var genericMap map[string]any
		if err := json.Unmarshal(buf, &genericMap); err == nil {
			for k, v := range genericMap {
				vStr := ""
				if v != nil {
					vStr = fmt.Sprintf("%v", v)
				}
				metadata[k] = vStr
			}
		}
	}
	return metadata
}

func (e *ErrorImpl[MT]) GrpcCode() grpccodes.Code {
	return e.code.GrpcCode
}

// GRPCStatus lets status.Convert map the error to its grpc code.
func (e *ErrorImpl[MT]) GRPCStatus() *status.Status {
	return status.New(e.code.GrpcCode, e.Error())
}

func (e *ErrorImpl[MT]) Code() uint16 {
	return e.code.Code
}

func (e *ErrorImpl[MT]) CodeName() string {
	return e.code.Name
}

// Error() implements the error interface.
func (e *ErrorImpl[MT]) Error() string {
	return fmt.Sprintf("%s: %s", e.code.String(), e.cause.Error())
}

func (e *ErrorImpl[MT]) Unwrap() error {
	return e.cause
}

func (e *ErrorImpl[MT]) WithMetadata(metadata MT) TypedError[MT] {
	e.metadata = metadata
	return e
}

type TxMetadata struct {
	Txid string `json:"txid"`
}

type MarkerMetadata struct {
	Txid   string `json:"txid,omitempty"`
	Script string `json:"script,omitempty"`
}

type AssetMismatchMetadata struct {
	Txid        string `json:"txid,omitempty"`
	OutputIndex int    `json:"output_index"`
}

type InsufficientFundsMetadata struct {
	AssetId   string `json:"asset_id,omitempty"`
	Requested uint64 `json:"requested"`
	Available uint64 `json:"available"`
}

type QuantityMetadata struct {
	Quantity uint64 `json:"quantity"`
	Max      uint64 `json:"max"`
}

type NodeMetadata struct {
	Method string `json:"method"`
}

type AddressMetadata struct {
	Address string `json:"address"`
}

type CrowdsaleMetadata struct {
	CrowdsaleId string `json:"crowdsale_id"`
}

type PledgeMetadata struct {
	CrowdsaleId string `json:"crowdsale_id"`
	Outpoint    string `json:"outpoint"`
}

var INTERNAL_ERROR = Code[map[string]any]{0, "INTERNAL_ERROR", grpccodes.Internal}
var MALFORMED_MARKER = Code[MarkerMetadata]{1, "MALFORMED_MARKER", grpccodes.InvalidArgument}

var ASSET_MISMATCH = Code[AssetMismatchMetadata]{
	2,
	"ASSET_MISMATCH",
	grpccodes.InvalidArgument,
}

var INSUFFICIENT_FUNDS = Code[InsufficientFundsMetadata]{
	3,
	"INSUFFICIENT_FUNDS",
	grpccodes.FailedPrecondition,
}
var INVALID_QUANTITY = Code[QuantityMetadata]{4, "INVALID_QUANTITY", grpccodes.InvalidArgument}
var NODE_UNAVAILABLE = Code[NodeMetadata]{5, "NODE_UNAVAILABLE", grpccodes.Unavailable}
var INVALID_ADDRESS = Code[AddressMetadata]{6, "INVALID_ADDRESS", grpccodes.InvalidArgument}

var CROWDSALE_NOT_FOUND = Code[CrowdsaleMetadata]{
	7,
	"CROWDSALE_NOT_FOUND",
	grpccodes.NotFound,
}

var CROWDSALE_CLOSED = Code[CrowdsaleMetadata]{
	8,
	"CROWDSALE_CLOSED",
	grpccodes.FailedPrecondition,
}

var PLEDGE_ALREADY_PROCESSED = Code[PledgeMetadata]{
	9,
	"PLEDGE_ALREADY_PROCESSED",
	grpccodes.AlreadyExists,
}

var INVALID_PRICE_SCHEDULE = Code[CrowdsaleMetadata]{
	10,
	"INVALID_PRICE_SCHEDULE",
	grpccodes.InvalidArgument,
}
