// Package diag implements bus-integrity diagnostics for the target machine:
// the activation protocol on the TEST signal, stuck-at detection for the
// data, address and control buses, and crosstalk detection across the whole
// unified bit space.
//
// # Overview
//
// A diagnostic pass runs strictly in sequence on one Context:
//  1. Acquire: check that TEST is inactive, drive it active and confirm the
//     hold. Failure is an *OwnershipFault, which is fatal.
//  2. VerifyDataBus, VerifyAddressBus, VerifyControl: drive all-zero, confirm
//     the bits that read high, drive all-ones and record the bits that read
//     low.
//  3. DetectCrosstalk: drive each drivable line alone and look for
//     unexpected changes elsewhere.
//  4. Release: drive TEST inactive and confirm.
//
// Ordinary faults are data (FaultRecord, CrosstalkResult). Only ownership
// faults are errors, and IsFatal tells them apart from transport errors.
//
// # Usage
//
//	dc := diag.NewContext(adapter, diag.DefaultConfig())
//	if err := diag.Acquire(dc); err != nil {
//		return err // diag.IsFatal(err) is true
//	}
//	data := diag.VerifyDataBus(dc)
//	xt, err := diag.DetectCrosstalk(ctx, dc, nil)
//	...
//	if err := diag.Release(dc); err != nil {
//		return err
//	}
//
// # Confirmation
//
// Electrical noise and transient coupling make single samples unreliable.
// Candidate faults are resampled Config.ConfirmLoops times, ConfirmDelay
// apart, and confirmed when the agreeing fraction reaches the relevant
// threshold: StuckThreshold for stuck-high, CrosstalkThreshold per
// destination line, OwnershipThreshold for TEST. Stuck-low is recorded from a
// single sample.
//
// Crosstalk costs O(lines x ConfirmLoops) bus operations and dominates a full
// pass. It can be cancelled between lines, never while a line is driven.
package diag
