package hub

import (
	"errors"
	"fmt"
)

// ErrPrecondition is the root of every caller-side violation. The hub never
// clamps such inputs; the offending call returns before mutating state.
var ErrPrecondition = errors.New("precondition violation")

var (
	ErrInvalidAmount      = fmt.Errorf("%w: amount must be positive", ErrPrecondition)
	ErrInvalidSlash       = fmt.Errorf("%w: slash amount outside [0, total bonded]", ErrPrecondition)
	ErrEmptySupply        = fmt.Errorf("%w: pool has bonded principal but no issued tokens", ErrPrecondition)
	ErrInsufficientSupply = fmt.Errorf("%w: conversion exceeds issued supply", ErrPrecondition)
	ErrRewardOrder        = fmt.Errorf("%w: reward block precedes last reward block", ErrPrecondition)
	ErrInvalidParams      = fmt.Errorf("%w: invalid hub parameters", ErrPrecondition)
)
