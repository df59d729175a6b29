package main

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/warehouse_backend/models"
	"bitbucket.org/mmdatafocus/warehouse_backend/models/reports"
	"bitbucket.org/mmdatafocus/warehouse_backend/utils"
	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func pathId(c *gin.Context, name string) (int, bool) {
	id, err := utils.ParseId(c.Param(name))
	if err != nil {
		utils.Error(c, err)
		return 0, false
	}
	return id, true
}

func bindJSON(c *gin.Context, dest any) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		utils.Error(c, utils.InvalidArgument("invalid request: %v", err))
		return false
	}
	return true
}

// bindOptionalJSON accepts an empty body.
func bindOptionalJSON(c *gin.Context, dest any) bool {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return true
	}
	return bindJSON(c, dest)
}

func adminOnly(c *gin.Context) {
	role, _ := utils.GetUserRoleFromContext(c.Request.Context())
	if role != string(models.UserRoleAdmin) {
		utils.ErrorStatus(c, http.StatusForbidden, "forbidden")
		return
	}
	c.Next()
}

func createStockInputHandler(c *gin.Context) {
	var input models.NewStockInput
	if !bindJSON(c, &input) {
		return
	}
	ctx := c.Request.Context()
	responsibleId, _ := utils.GetUserIdFromContext(ctx)
	result, err := models.CreateStockInputs(ctx, responsibleId, &input)
	if err != nil {
		utils.Error(c, err)
		return
	}
	utils.Success(c, result)
}

func updateStockInputHandler(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	var input models.UpdateStockInput
	if !bindJSON(c, &input) {
		return
	}
	result, err := models.UpdateImport(c.Request.Context(), id, &input)
	if err != nil {
		utils.Error(c, err)
		return
	}
	utils.Success(c, result)
}

func setCheckingHandler(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	result, err := models.SetStatusChecking(c.Request.Context(), id)
	if err != nil {
		utils.Error(c, err)
		return
	}
	utils.Success(c, result)
}

func setCheckedHandler(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	var input models.CheckStockInput
	if !bindOptionalJSON(c, &input) {
		return
	}
	result, err := models.SetStatusChecked(c.Request.Context(), id, &input)
	if err != nil {
		utils.Error(c, err)
		return
	}
	utils.Success(c, result)
}

func cancelStockInputHandler(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	result, err := models.DeleteImportTransaction(c.Request.Context(), id)
	if err != nil {
		utils.Error(c, err)
		return
	}
	utils.Success(c, result)
}

func payInFullHandler(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	var input models.NewPayment
	if !bindOptionalJSON(c, &input) {
		return
	}
	result, err := models.UpdateToPaidInFullStatus(c.Request.Context(), id, &input)
	if err != nil {
		utils.Error(c, err)
		return
	}
	utils.Success(c, result)
}

func partialPaymentHandler(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	var input models.NewPayment
	if !bindJSON(c, &input) {
		return
	}
	result, err := models.CreatePartialPayment(c.Request.Context(), id, &input)
	if err != nil {
		utils.Error(c, err)
		return
	}
	utils.Success(c, result)
}

func getStockInputHandler(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	result, err := models.GetImportTransaction(c.Request.Context(), id)
	if err != nil {
		utils.Error(c, err)
		return
	}
	utils.Success(c, result)
}

func listStockInputsHandler(c *gin.Context) {
	filter, err := parseStockInputFilter(c)
	if err != nil {
		utils.Error(c, err)
		return
	}
	result, err := models.ListImportTransactions(c.Request.Context(), filter)
	if err != nil {
		utils.Error(c, err)
		return
	}
	utils.Success(c, result)
}

func parseStockInputFilter(c *gin.Context) (models.StockInputFilter, error) {
	var filter models.StockInputFilter
	ints := map[string]*int{
		"warehouse_id": &filter.WarehouseId,
		"supplier_id":  &filter.SupplierId,
		"limit":        &filter.Limit,
		"offset":       &filter.Offset,
	}
	for key, dest := range ints {
		raw := strings.TrimSpace(c.Query(key))
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return filter, utils.InvalidArgument("invalid %s %q", key, raw)
		}
		*dest = n
	}
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return filter, utils.InvalidArgument("invalid status %q", raw)
		}
		status := models.TransactionStatus(n)
		filter.Status = &status
	}
	dates := map[string]**time.Time{
		"from": &filter.From,
		"to":   &filter.To,
	}
	for key, dest := range dates {
		raw := strings.TrimSpace(c.Query(key))
		if raw == "" {
			continue
		}
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return filter, utils.InvalidArgument("invalid %s date %q, expected YYYY-MM-DD", key, raw)
		}
		*dest = &t
	}
	return filter, nil
}

func paymentSummaryHandler(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	result, err := models.GetPaymentSummary(c.Request.Context(), id)
	if err != nil {
		utils.Error(c, err)
		return
	}
	utils.Success(c, result)
}

func stockInputHistoryHandler(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := models.GetImportTransaction(ctx, id); err != nil {
		utils.Error(c, err)
		return
	}
	result, err := models.GetHistories(ctx, models.TransactionReferenceType, id)
	if err != nil {
		utils.Error(c, err)
		return
	}
	utils.Success(c, result)
}

func exportStockInputHandler(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	data, filename, err := reports.ExportReceiptExcel(c.Request.Context(), id)
	if err != nil {
		utils.Error(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, xlsxContentType, data)
}

func listInventoriesHandler(c *gin.Context) {
	warehouseId := 0
	if raw := strings.TrimSpace(c.Query("warehouse_id")); raw != "" {
		id, err := utils.ParseId(raw)
		if err != nil {
			utils.Error(c, err)
			return
		}
		warehouseId = id
	}
	result, err := models.ListInventories(c.Request.Context(), warehouseId)
	if err != nil {
		utils.Error(c, err)
		return
	}
	utils.Success(c, result)
}

func getInventoryHandler(c *gin.Context) {
	warehouseId, ok := pathId(c, "warehouseId")
	if !ok {
		return
	}
	productId, ok := pathId(c, "productId")
	if !ok {
		return
	}
	result, err := models.GetInventory(c.Request.Context(), warehouseId, productId)
	if err != nil {
		utils.Error(c, err)
		return
	}
	utils.Success(c, result)
}

func reconcileInventoryHandler(c *gin.Context) {
	persist := strings.EqualFold(c.Query("persist"), "true")
	result, err := models.ReconcileInventory(c.Request.Context(), persist)
	if err != nil {
		utils.Error(c, err)
		return
	}
	utils.Success(c, result)
}

func outboxReplayHandler(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	result, err := models.ReplayOutboxMessage(c.Request.Context(), id)
	if err != nil {
		utils.Error(c, err)
		return
	}
	utils.Success(c, result)
}
