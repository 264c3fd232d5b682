// Package routes 聚合诊断与管理接口，与业务读路径分开挂载。
package routes

import (
	"github.com/gofiber/fiber/v3"

	"github.com/catalog-edge/catalog-edge/internal/cache"
	"github.com/catalog-edge/catalog-edge/internal/flight"
)

// inspectSampleLimit 限制诊断接口返回的条目样本数量。
const inspectSampleLimit = 32

// RegisterCacheRoutes 暴露 /-/cache 管理接口：
// GET 返回缓存规模、进行中的抓取数与条目样本（只读）；
// DELETE 清空全部缓存条目并丢弃在途登记。
func RegisterCacheRoutes(app *fiber.App, store *cache.Store, flights *flight.Coalescer) {
	if app == nil || store == nil || flights == nil {
		return
	}

	app.Get("/-/cache", func(c fiber.Ctx) error {
		report := store.Inspect(inspectSampleLimit)
		return c.JSON(fiber.Map{
			"size":      report.Size,
			"in_flight": flights.InFlight(),
			"entries":   report.Entries,
		})
	})

	app.Delete("/-/cache", func(c fiber.Ctx) error {
		store.Clear()
		flights.Clear()
		return c.JSON(fiber.Map{"result": "cleared"})
	})
}
