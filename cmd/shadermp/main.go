// Command shadermp is a demo host for the shader multipass render
// engine. It reads a shader source file from disk, drives it in an
// interactive window or records it to a video file, grounded on
// cmd/main.go's flag set and runShadertoy orchestration — reworked
// to read a local file instead of fetching from the Shadertoy API.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"runtime"
	"time"

	"github.com/shadermp/engine/engine"
	"github.com/shadermp/engine/glfwhost"
	"github.com/shadermp/engine/glhost"
	"github.com/shadermp/engine/recorder"
	"github.com/shadermp/engine/wrapper"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	shaderPath := flag.String("shader", "", "path to a Shadertoy-style GLSL source file")
	help := flag.Bool("help", false, "show help message")

	record := flag.Bool("record", false, "enable offscreen recording mode")
	duration := flag.Float64("duration", 10.0, "duration to record, in seconds")
	fps := flag.Int("fps", 60, "frames per second")
	width := flag.Int("width", 1280, "output width")
	height := flag.Int("height", 720, "output height")
	outputFile := flag.String("output", "output.mp4", "output file name for recording")
	ffmpegPath := flag.String("ffmpeg", "", "path to ffmpeg executable")

	flag.Parse()

	if *help {
		fmt.Println("Shader multipass render engine demo host")
		flag.PrintDefaults()
		return
	}

	if *shaderPath == "" {
		log.Fatalf("shadermp: -shader is required")
	}

	source, err := os.ReadFile(*shaderPath)
	if err != nil {
		log.Fatalf("shadermp: failed to read shader source: %v", err)
	}

	eng, err := engine.Create(string(source))
	if err != nil {
		log.Fatalf("shadermp: failed to parse shader: %v", err)
	}

	translator, err := wrapper.NewGSTTranslator(nil)
	var t wrapper.Translator = wrapper.PassThroughTranslator{}
	if err == nil {
		t = translator
	} else {
		log.Printf("shadermp: falling back to pass-through translator: %v", err)
	}

	if *record {
		runOffscreen(eng, t, *width, *height, *duration, *fps, *outputFile, *ffmpegPath)
	} else {
		runInteractive(eng, t, *width, *height)
	}
}

func runInteractive(eng *engine.Engine, t wrapper.Translator, width, height int) {
	win, err := glfwhost.Open(width, height, "shadermp")
	if err != nil {
		log.Fatalf("shadermp: failed to open window: %v", err)
	}
	defer win.Shutdown()

	registry, err := glhost.ProbeCapabilities()
	if err != nil {
		log.Fatalf("shadermp: capability probe failed: %v", err)
	}
	log.Printf("shadermp: GL %s, output profile %v", registry.BestAvailableVersion(), registry.OutputProfile())

	host := glhost.New()
	if err := eng.InitGL(host, t, registry.OutputProfile(), width, height); err != nil {
		log.Fatalf("shadermp: init_gl failed: %v", err)
	}
	if !eng.CompileAll() {
		for _, e := range eng.GetAllErrors() {
			log.Printf("shadermp: %v", e)
		}
	}

	log.Println("shadermp: starting interactive render loop")
	startTime := win.Time()
	for !win.ShouldClose() {
		currentTime := win.Time() - startTime
		mouseX, mouseY, _, _, isDown := win.SampleInput()
		eng.Render(currentTime, float64(mouseX), float64(mouseY), isDown)

		fbWidth, fbHeight := win.FramebufferSize()
		eng.Resize(fbWidth, fbHeight)

		win.SwapBuffersAndPollEvents()
	}
}

func runOffscreen(eng *engine.Engine, t wrapper.Translator, width, height int, duration float64, fps int, outputFile, ffmpegPath string) {
	// Recording still needs a real current GL context; the window is
	// just hidden, mirroring runShadertoy's "window will be hidden" in
	// record mode.
	win, err := glfwhost.OpenHidden(width, height, "shadermp")
	if err != nil {
		log.Fatalf("shadermp: failed to open offscreen context: %v", err)
	}
	defer win.Shutdown()

	registry, err := glhost.ProbeCapabilities()
	if err != nil {
		log.Fatalf("shadermp: capability probe failed: %v", err)
	}

	host := glhost.New()
	if err := eng.InitGL(host, t, registry.OutputProfile(), width, height); err != nil {
		log.Fatalf("shadermp: init_gl failed: %v", err)
	}
	if !eng.CompileAll() {
		for _, e := range eng.GetAllErrors() {
			log.Printf("shadermp: %v", e)
		}
	}

	reader := glhost.NewPBOReader(width, height)
	defer reader.Destroy()

	rec := recorder.New(reader, 0, width, height)
	log.Println("shadermp: starting offscreen render loop")
	err = rec.Run(eng, recorder.Options{
		Width:      width,
		Height:     height,
		Duration:   time.Duration(duration * float64(time.Second)),
		FPS:        fps,
		OutputFile: outputFile,
		FFmpegPath: ffmpegPath,
	})
	if err != nil {
		log.Fatalf("shadermp: offscreen rendering failed: %v", err)
	}
	log.Printf("shadermp: successfully rendered to %s", outputFile)
}
