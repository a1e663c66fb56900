package repl

import (
	"fmt"
	"io"
	"strings"

	"warehouse-ops/internal/app"
	"warehouse-ops/internal/core"
)

func printError(out io.Writer, err error) {
	if core.KindOf(err) == core.KindVerification {
		fmt.Fprintf(out, "MISMATCH: %v\n", err)
		return
	}
	fmt.Fprintf(out, "Error [%s]: %v\n", core.CodeOf(err), err)
}

func printPutaway(out io.Writer, r *core.PutawayResult) {
	switch {
	case r.AlreadyStored:
		fmt.Fprintf(out, "%s is already in %s (%d/%d).\n", r.Shipment.TrackingID, r.Shipment.BinCode, r.OccupancyUsed, r.OccupancyTotal)
	case r.WasManifested:
		fmt.Fprintf(out, "Stored %s in %s (%d/%d). Manifested.\n", r.Shipment.TrackingID, r.Shipment.BinCode, r.OccupancyUsed, r.OccupancyTotal)
	default:
		fmt.Fprintf(out, "Stored %s in %s (%d/%d). Not on any manifest.\n", r.Shipment.TrackingID, r.Shipment.BinCode, r.OccupancyUsed, r.OccupancyTotal)
	}
}

func printDispatch(out io.Writer, r *core.DispatchResult) {
	fmt.Fprintf(out, "Dispatched %d package(s) from %s: %s\n", r.DispatchedCount, r.BinCode, strings.Join(r.TrackingIDs, ", "))
}

func printShipment(out io.Writer, sh *core.Shipment) {
	fmt.Fprintf(out, "\nTRACKING ID: %s\n", sh.TrackingID)
	fmt.Fprintf(out, "STATUS:      %s\n", sh.Status)
	fmt.Fprintf(out, "BIN:         %s\n", orDash(sh.BinCode))
	fmt.Fprintf(out, "ASSIGNED TO: %s\n", orDash(sh.AssignedTo))
	fmt.Fprintf(out, "MANIFESTED:  %t\n", sh.WasManifested)
	if sh.TimeIn != nil {
		fmt.Fprintf(out, "TIME IN:     %s\n", sh.TimeIn.Format("2006-01-02 15:04"))
	}
	if sh.TimeOut != nil {
		fmt.Fprintf(out, "TIME OUT:    %s\n", sh.TimeOut.Format("2006-01-02 15:04"))
	}
}

func printBinContents(out io.Writer, c *core.BinContents) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, strings.Repeat("=", 62))
	fmt.Fprintf(out, "  BIN %s  %s  [%s]\n", c.Bin.Code, c.Bin.Location, c.Bin.Status)
	fmt.Fprintf(out, "  Used %d of %d (stored %d, picked %d)\n", c.Bin.Used, c.Bin.Capacity, c.Bin.Stored, c.Bin.Staged)
	fmt.Fprintln(out, strings.Repeat("=", 62))
	if len(c.Shipments) == 0 {
		fmt.Fprintln(out, "  Empty.")
		fmt.Fprintln(out, strings.Repeat("=", 62))
		return
	}
	fmt.Fprintf(out, "  %-24s %-12s %s\n", "TRACKING ID", "STATUS", "ASSIGNED TO")
	fmt.Fprintln(out, strings.Repeat("-", 62))
	for _, sh := range c.Shipments {
		fmt.Fprintf(out, "  %-24s %-12s %s\n", sh.TrackingID, sh.Status, orDash(sh.AssignedTo))
	}
	fmt.Fprintln(out, strings.Repeat("=", 62))
}

func printBins(out io.Writer, r *app.BinListResult) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, strings.Repeat("=", 62))
	fmt.Fprintf(out, "  BINS - Warehouse %s\n", r.WarehouseID)
	fmt.Fprintln(out, strings.Repeat("=", 62))
	fmt.Fprintf(out, "  %-12s %-22s %-12s %10s\n", "CODE", "LOCATION", "STATUS", "USED")
	fmt.Fprintln(out, strings.Repeat("-", 62))
	for _, b := range r.Bins {
		fmt.Fprintf(out, "  %-12s %-22s %-12s %5d/%-4d\n", b.Code, b.Location, b.Status, b.Used, b.Capacity)
	}
	fmt.Fprintln(out, strings.Repeat("=", 62))
}

func printStats(out io.Writer, st *core.WarehouseStats) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, strings.Repeat("=", 62))
	fmt.Fprintf(out, "  WAREHOUSE %s\n", st.WarehouseID)
	fmt.Fprintln(out, strings.Repeat("=", 62))
	fmt.Fprintf(out, "  Bins          : %d total, %d in use, %d available\n", st.TotalBins, st.BinsInUse, st.AvailableBins)
	fmt.Fprintf(out, "  Capacity      : %d of %d used (%s%%)\n", st.UsedCapacity, st.TotalCapacity, st.UtilizationRate.StringFixed(1))
	fmt.Fprintf(out, "  Shipments     : %d\n", st.TotalShipments)
	for _, status := range core.Statuses() {
		fmt.Fprintf(out, "    %-12s: %d\n", status, st.StatusCounts[status])
	}
	fmt.Fprintln(out, strings.Repeat("=", 62))
}

func printOperators(out io.Writer, r *app.OperatorListResult) {
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  %-10s %-24s %s\n", "ID", "NAME", "OPEN")
	fmt.Fprintln(out, strings.Repeat("-", 46))
	for _, l := range r.Operators {
		fmt.Fprintf(out, "  %-10s %-24s %d\n", l.Operator.ID, l.Operator.Name, l.Open)
	}
}

func printHelp(out io.Writer) {
	lines := []string{
		"",
		"WAREHOUSE SCANNER - COMMANDS",
		strings.Repeat("=", 62),
		"",
		"  SCANNING",
		"  /putaway [bin]     Select a bin, then scan packages into it",
		"  /pickup            Scan a package twice to pick it",
		"  /dispatch          Scan a bin twice to dispatch its picked packages",
		"  /single            Scan a package twice to dispatch it alone",
		"  /done              Stop scanning",
		"",
		"  LOOKUP",
		"  /bin <code>        Bin occupancy and contents",
		"  /bins              All bins of the warehouse",
		"  /search <id>       Shipment status and location",
		"  /stats             Warehouse utilization",
		"  /operators         Operators and their open work",
		"",
		"  SESSION",
		"  /help              Show this help",
		"  /exit              Exit",
		strings.Repeat("=", 62),
	}
	fmt.Fprintln(out, strings.Join(lines, "\n"))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
