package repl

import (
	"fmt"

	"warehouse-ops/internal/app"
)

// scanMode consumes one scanned line and returns the mode for the next one.
type scanMode interface {
	prompt() string
	scan(s *session, code string) (scanMode, error)
}

type idleMode struct{}

func (idleMode) prompt() string { return "" }

func (idleMode) scan(s *session, _ string) (scanMode, error) {
	fmt.Fprintln(s.out, "Not scanning. Start with /putaway, /pickup, /dispatch or /single.")
	return idleMode{}, nil
}

// putawayMode: the first scan selects the bin, every later scan stores a
// package in it. A failed putaway keeps the bin selected.
type putawayMode struct {
	bin string
}

func (m *putawayMode) prompt() string {
	if m.bin == "" {
		return "putaway:bin"
	}
	return "putaway:" + m.bin
}

func (m *putawayMode) scan(s *session, code string) (scanMode, error) {
	if m.bin == "" {
		snap, err := s.svc.ValidateBin(s.ctx, s.actor, code)
		if err != nil {
			return m, err
		}
		m.bin = snap.Code
		fmt.Fprintf(s.out, "Bin %s selected (%d/%d used).\n", snap.Code, snap.Used, snap.Capacity)
		return m, nil
	}
	res, err := s.svc.Putaway(s.ctx, s.actor, app.PutawayRequest{BinCode: m.bin, TrackingID: code})
	if err != nil {
		return m, err
	}
	printPutaway(s.out, res)
	return m, nil
}

// pickupMode pairs a declaring scan with a confirming scan.
type pickupMode struct {
	expected string
}

func (m *pickupMode) prompt() string {
	if m.expected == "" {
		return "pickup"
	}
	return "pickup:confirm " + m.expected
}

func (m *pickupMode) scan(s *session, code string) (scanMode, error) {
	if m.expected == "" {
		m.expected = code
		return m, nil
	}
	expected := m.expected
	m.expected = ""
	res, err := s.svc.Pickup(s.ctx, s.actor, app.ScanRequest{TrackingID: code, ExpectedTrackingID: expected})
	if err != nil {
		return m, err
	}
	fmt.Fprintf(s.out, "Picked %s from %s.\n", res.Shipment.TrackingID, res.Shipment.BinCode)
	return m, nil
}

// dispatchMode pairs a bin scan with a confirming bin scan.
type dispatchMode struct {
	expected string
}

func (m *dispatchMode) prompt() string {
	if m.expected == "" {
		return "dispatch"
	}
	return "dispatch:confirm " + m.expected
}

func (m *dispatchMode) scan(s *session, code string) (scanMode, error) {
	if m.expected == "" {
		m.expected = code
		return m, nil
	}
	expected := m.expected
	m.expected = ""
	res, err := s.svc.Dispatch(s.ctx, s.actor, app.DispatchRequest{BinCode: code, ExpectedBinCode: expected})
	if err != nil {
		return m, err
	}
	printDispatch(s.out, res)
	return m, nil
}

// singleMode dispatches one package at a time.
type singleMode struct {
	expected string
}

func (m *singleMode) prompt() string {
	if m.expected == "" {
		return "single"
	}
	return "single:confirm " + m.expected
}

func (m *singleMode) scan(s *session, code string) (scanMode, error) {
	if m.expected == "" {
		m.expected = code
		return m, nil
	}
	expected := m.expected
	m.expected = ""
	res, err := s.svc.DispatchSingle(s.ctx, s.actor, app.ScanRequest{TrackingID: code, ExpectedTrackingID: expected})
	if err != nil {
		return m, err
	}
	printDispatch(s.out, res)
	return m, nil
}
