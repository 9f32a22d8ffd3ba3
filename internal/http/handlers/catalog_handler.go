// Catalog HTTP handlers.
//
// Read-only endpoints exposing the shop's reference data:
//   - GET /catalog/oils
//   - GET /catalog/device-types
//   - GET /catalog/plans
//   - GET /catalog/devices
//
// The catalog is immutable for the lifetime of the process, so these
// responses are safe to cache aggressively client-side.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aromabox/go-aroma-backend/internal/catalog"
)

// OilsResponse wraps the oil table.
type OilsResponse struct {
	Oils []catalog.AromaOil `json:"oils"`
}

// DeviceTypesResponse wraps the device-type table.
type DeviceTypesResponse struct {
	DeviceTypes []catalog.DeviceType `json:"device_types"`
}

// PlansResponse wraps the plan table.
type PlansResponse struct {
	Plans []catalog.Plan `json:"plans"`
}

// DevicesResponse wraps the registered device fleet.
type DevicesResponse struct {
	Devices []catalog.Device `json:"devices"`
}

// ListOils godoc
// @ID          listOils
// @Summary     List aroma oils
// @Tags        Catalog
// @Produce     json
// @Success     200  {object}  handlers.OilsResponse
// @Router      /catalog/oils [get]
func (h *Handlers) ListOils(c *gin.Context) {
	ok(c, http.StatusOK, OilsResponse{Oils: h.catalog.Oils()})
}

// ListDeviceTypes godoc
// @ID          listDeviceTypes
// @Summary     List diffuser device types
// @Tags        Catalog
// @Produce     json
// @Success     200  {object}  handlers.DeviceTypesResponse
// @Router      /catalog/device-types [get]
func (h *Handlers) ListDeviceTypes(c *gin.Context) {
	ok(c, http.StatusOK, DeviceTypesResponse{DeviceTypes: h.catalog.DeviceTypes()})
}

// ListPlans godoc
// @ID          listPlans
// @Summary     List subscription plans
// @Tags        Catalog
// @Produce     json
// @Success     200  {object}  handlers.PlansResponse
// @Router      /catalog/plans [get]
func (h *Handlers) ListPlans(c *gin.Context) {
	ok(c, http.StatusOK, PlansResponse{Plans: h.catalog.Plans()})
}

// ListDevices godoc
// @ID          listDevices
// @Summary     List registered diffuser devices
// @Tags        Catalog
// @Produce     json
// @Success     200  {object}  handlers.DevicesResponse
// @Router      /catalog/devices [get]
func (h *Handlers) ListDevices(c *gin.Context) {
	ok(c, http.StatusOK, DevicesResponse{Devices: h.catalog.Devices()})
}
