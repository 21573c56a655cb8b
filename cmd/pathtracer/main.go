// Command pathtracer loads a scene file and renders it through the GPU
// path tracer in a window, adapted from the teacher's rt_main.go: same
// glfw bring-up and callback wiring, with the fly-camera mouse-look
// callbacks dropped (this renderer's camera is a static look-at parsed
// from the scene file, not a first-person controller) and a positional
// scene-file argument plus click-to-pick added in their place.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"runtime"

	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/Stronautt/PathTracer/app"
	"github.com/Stronautt/PathTracer/scene"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	debug := flag.Bool("debug", false, "Enable the BVH wireframe debug overlay")
	flag.Parse()

	if logPath := os.Getenv("PATHTRACER_LOG"); logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			log.Fatalf("pathtracer: opening PATHTRACER_LOG %q: %v", logPath, err)
		}
		defer f.Close()
		log.SetOutput(f)
	}

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: pathtracer [--debug] <scene-file>")
		os.Exit(1)
	}
	sceneFile := flag.Arg(0)

	s, err := scene.Load(sceneFile)
	if err != nil {
		log.Fatalf("pathtracer: loading scene %q: %v", sceneFile, err)
	}

	if err := glfw.Init(); err != nil {
		log.Fatalf("pathtracer: glfw.Init: %v", err)
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	window, err := glfw.CreateWindow(1280, 720, "PathTracer", nil, nil)
	if err != nil {
		log.Fatalf("pathtracer: creating window: %v", err)
	}
	defer window.Destroy()

	application := app.NewApp(window)
	application.DebugMode = *debug
	if err := application.LoadScene(s); err != nil {
		log.Fatalf("pathtracer: loading scene into app: %v", err)
	}
	if err := application.Init(); err != nil {
		log.Fatalf("pathtracer: GPU init: %v", err)
	}

	window.SetFramebufferSizeCallback(func(w *glfw.Window, width, height int) {
		application.Resize(width, height)
	})

	window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if key == glfw.KeyEscape && action == glfw.Press {
			w.SetShouldClose(true)
		}
		if key == glfw.KeyF1 && action == glfw.Press {
			application.DebugMode = !application.DebugMode
		}
	})

	window.SetMouseButtonCallback(func(w *glfw.Window, button glfw.MouseButton, action glfw.Action, mods glfw.ModifierKey) {
		if button != glfw.MouseButtonLeft || action != glfw.Press {
			return
		}
		xpos, ypos := w.GetCursorPos()
		width, height := w.GetSize()
		ndcX := float32(2.0*xpos/float64(width) - 1.0)
		ndcY := float32(1.0 - 2.0*ypos/float64(height))
		if hit := application.HandleClick(ndcX, ndcY); hit != nil {
			log.Printf("picked shape %d at t=%.3f", hit.ShapeIndex, hit.T)
		}
	})

	for !window.ShouldClose() {
		glfw.PollEvents()
		application.Update()
		application.Render()
	}
}
