package billing

import (
	"encoding/csv"
	"fmt"
	"net/http"

	"github.com/atrium-pm/atrium/internal/platform/httpx"
)

func (h *Handler) exportBill(w http.ResponseWriter, r *http.Request) {
	billID := h.billID(r)
	if format := r.URL.Query().Get("format"); format != "" && format != "csv" {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	bill, err := h.service.Bill(r.Context(), billID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	lines, err := h.service.Export(r.Context(), billID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="bill-%d-%s.csv"`, bill.ID, bill.CycleStart.Format("2006-01-02")))

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"item_code", "charge_code", "qty", "unit_price", "amount"})
	for _, line := range lines {
		_ = cw.Write([]string{
			line.ItemCode,
			line.ChargeCode,
			line.Qty.String(),
			line.UnitPrice.String(),
			line.Amount.String(),
		})
	}
	cw.Flush()
}
