package common

import (
	"math"

	coreerrors "crosshub/core/errors"
)

var (
	ErrQuotaRequestsExceeded = coreerrors.New(coreerrors.KindValidation, "quota_requests_exceeded", "quota requests exceeded")
	ErrQuotaVolumeExceeded   = coreerrors.New(coreerrors.KindValidation, "quota_volume_exceeded", "quota volume exceeded")
	ErrQuotaCounterOverflow  = coreerrors.New(coreerrors.KindArithmetic, "quota_counter_overflow", "quota counter overflow")
)

// QuotaNow captures the current quota usage counters for a requester.
type QuotaNow struct {
	ReqCount   uint32
	VolumeUsed uint64
	EpochID    uint64
}

// Quota defines the limits enforced per requester and epoch. Zero disables a
// limit.
type Quota struct {
	MaxRequestsPerEpoch uint32
	MaxVolumePerEpoch   uint64
	EpochSeconds        uint32
}

// Enabled reports whether any limit is configured.
func (q Quota) Enabled() bool {
	return q.MaxRequestsPerEpoch > 0 || q.MaxVolumePerEpoch > 0
}

// Epoch maps a unix timestamp onto the quota epoch. A zero EpochSeconds means
// one-minute epochs.
func (q Quota) Epoch(now int64) uint64 {
	if now < 0 {
		return 0
	}
	span := uint64(q.EpochSeconds)
	if span == 0 {
		span = 60
	}
	return uint64(now) / span
}

// CheckQuota verifies whether the additional request and volume fit within the
// configured quota. The returned QuotaNow reflects the updated counters when the
// quota is not exceeded.
func CheckQuota(q Quota, nowEpoch uint64, prev QuotaNow, addReq uint32, addVolume uint64) (QuotaNow, error) {
	next := prev
	if prev.EpochID != nowEpoch {
		next = QuotaNow{EpochID: nowEpoch}
	}

	if addReq > 0 {
		if next.ReqCount > math.MaxUint32-addReq {
			return prev, ErrQuotaCounterOverflow
		}
		next.ReqCount += addReq
	}
	if q.MaxRequestsPerEpoch > 0 && next.ReqCount > q.MaxRequestsPerEpoch {
		return prev, ErrQuotaRequestsExceeded
	}

	if addVolume > 0 {
		if next.VolumeUsed > math.MaxUint64-addVolume {
			return prev, ErrQuotaCounterOverflow
		}
		next.VolumeUsed += addVolume
	}
	if q.MaxVolumePerEpoch > 0 && next.VolumeUsed > q.MaxVolumePerEpoch {
		return prev, ErrQuotaVolumeExceeded
	}

	return next, nil
}
