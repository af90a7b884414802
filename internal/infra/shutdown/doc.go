// Package shutdown provides graceful shutdown for sessionguard.
//
// A Handler waits for SIGINT, SIGTERM or an explicit Trigger and then runs
// the registered hooks in reverse order under one timeout:
//
//	h := shutdown.NewHandler(10*time.Second, logger)
//	h.OnShutdown("http", srv.Shutdown)
//	err := h.Wait(ctx)
package shutdown
